package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"os"

	"github.com/spf13/cobra"

	"github.com/jLantxa/mapache-sub000/internal/data"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

var cmdSnapshots = &cobra.Command{
	Use:     "snapshots",
	Short:   "List snapshots in the repository",
	Aliases: []string{"ls-snapshots"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSnapshots(cmd.Context())
	},
}

func init() {
	cmdRoot.AddCommand(cmdSnapshots)
}

func runSnapshots(ctx context.Context) error {
	repo, err := OpenRepository(ctx)
	if err != nil {
		return err
	}

	type entry struct {
		id objects.ID
		sn *data.Snapshot
	}
	var entries []entry
	err = data.ForAllSnapshots(ctx, repo, repo, nil, func(id objects.ID, sn *data.Snapshot, err error) error {
		if err != nil {
			return err
		}
		entries = append(entries, entry{id: id, sn: sn})
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].sn.Time.Before(entries[j].sn.Time) })

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tHOST\tTAGS\tPATHS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%v\t%v\t%v\t%v\t%v\n",
			e.id.String()[:8], e.sn.Time.Format("2006-01-02 15:04:05"), e.sn.Hostname, e.sn.Tags, e.sn.Paths)
	}
	return tw.Flush()
}
