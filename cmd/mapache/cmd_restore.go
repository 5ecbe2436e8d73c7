package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jLantxa/mapache-sub000/internal/data"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
	"github.com/jLantxa/mapache-sub000/internal/repository"
	"github.com/jLantxa/mapache-sub000/internal/restorer"
)

var restoreOptions struct {
	Target string
}

var cmdRestore = &cobra.Command{
	Use:   "restore SNAPSHOT_ID",
	Short: "Restore a snapshot to a target directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRestore(cmd.Context(), args[0])
	},
}

func init() {
	f := cmdRestore.Flags()
	f.StringVarP(&restoreOptions.Target, "target", "t", "", "directory to restore to (required)")
	cmdRoot.AddCommand(cmdRestore)
}

func runRestore(ctx context.Context, idPrefix string) error {
	if restoreOptions.Target == "" {
		return errors.Fatal("please specify a target directory with --target")
	}

	repo, err := OpenRepository(ctx)
	if err != nil {
		return err
	}

	id, sn, err := findSnapshot(ctx, repo, idPrefix)
	if err != nil {
		return err
	}
	if sn.Tree == nil {
		return errors.Errorf("snapshot %v has no tree", id)
	}

	r := restorer.New(repo)
	if err := r.To(ctx, *sn.Tree, restoreOptions.Target); err != nil {
		return errors.Wrap(err, "restore")
	}

	fmt.Printf("restored snapshot %v to %v\n", id, restoreOptions.Target)
	fmt.Printf("  files: %d, dirs: %d, bytes: %d\n", r.Stats.Files, r.Stats.Dirs, r.Stats.Bytes)
	return nil
}

func findSnapshot(ctx context.Context, repo *repository.Repository, idPrefix string) (objects.ID, *data.Snapshot, error) {
	id, err := repo.Find(ctx, objects.SnapshotFile, idPrefix)
	if err != nil {
		return objects.ID{}, nil, errors.Wrap(err, "find snapshot")
	}

	sn, err := data.LoadSnapshot(ctx, repo, id)
	if err != nil {
		return objects.ID{}, nil, errors.Wrap(err, "load snapshot")
	}
	return id, sn, nil
}
