package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jLantxa/mapache-sub000/internal/archiver"
	"github.com/jLantxa/mapache-sub000/internal/data"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
	"github.com/jLantxa/mapache-sub000/internal/repository"
)

var backupOptions struct {
	Tags     []string
	Excludes []string
	Force    bool
}

var cmdBackup = &cobra.Command{
	Use:   "backup [flags] FILE/DIR [FILE/DIR ...]",
	Short: "Create a new snapshot of the given paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackup(cmd.Context(), args)
	},
}

func init() {
	f := cmdBackup.Flags()
	f.StringSliceVar(&backupOptions.Tags, "tag", nil, "attach a tag to the snapshot (can be given multiple times)")
	f.StringSliceVar(&backupOptions.Excludes, "exclude", nil, "exclude paths matching this glob pattern (can be given multiple times)")
	f.BoolVar(&backupOptions.Force, "force", false, "reread every file even if its metadata looks unchanged")
	cmdRoot.AddCommand(cmdBackup)
}

func runBackup(ctx context.Context, targets []string) error {
	repo, err := OpenRepository(ctx)
	if err != nil {
		return err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	opts := archiver.Options{
		Tags:     backupOptions.Tags,
		Excludes: backupOptions.Excludes,
		Hostname: hostname,
	}

	if !backupOptions.Force {
		parentID, parentTree, err := findParentSnapshot(ctx, repo, targets)
		if err != nil {
			return err
		}
		opts.ParentSnapshot = parentID
		opts.ParentTree = parentTree
	}

	arch := archiver.New(repo)
	sn, err := arch.Snapshot(ctx, targets, opts)
	if err != nil {
		return errors.Wrap(err, "snapshot")
	}

	fmt.Printf("snapshot %v saved\n", sn.ID())
	fmt.Printf("  new files:       %d\n", arch.Stats.NewFiles)
	fmt.Printf("  changed files:   %d\n", arch.Stats.ChangedFiles)
	fmt.Printf("  unchanged files: %d\n", arch.Stats.UnchangedFiles)
	fmt.Printf("  directories:     %d\n", arch.Stats.Dirs)
	return nil
}

// findParentSnapshot returns the most recent snapshot covering exactly
// targets, for the archiver to diff new content against.
func findParentSnapshot(ctx context.Context, repo *repository.Repository, targets []string) (*objects.ID, *objects.ID, error) {
	abs := make([]string, len(targets))
	for i, t := range targets {
		a, err := filepath.Abs(t)
		if err != nil {
			return nil, nil, err
		}
		abs[i] = a
	}

	type candidate struct {
		id objects.ID
		sn *data.Snapshot
	}

	var candidates []candidate
	err := data.ForAllSnapshots(ctx, repo, repo, nil, func(id objects.ID, sn *data.Snapshot, err error) error {
		if err != nil {
			return nil
		}
		if sn.HasPaths(abs) {
			candidates = append(candidates, candidate{id: id, sn: sn})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].sn.Time.Before(candidates[j].sn.Time) })
	latest := candidates[len(candidates)-1]
	return &latest.id, latest.sn.Tree, nil
}
