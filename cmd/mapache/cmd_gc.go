package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jLantxa/mapache-sub000/internal/gc"
)

var gcOptions struct {
	Tolerance float64
	DryRun    bool
}

var cmdGC = &cobra.Command{
	Use:     "gc",
	Short:   "Remove unreferenced data and repack fragmented packs",
	Aliases: []string{"prune"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGC(cmd.Context())
	},
}

func init() {
	f := cmdGC.Flags()
	f.Float64Var(&gcOptions.Tolerance, "tolerance", gc.DefaultMinPackSizeFactor, "fraction of a full pack a pack may waste on garbage before it's repacked")
	f.BoolVar(&gcOptions.DryRun, "dry-run", false, "only report what would be done")
	cmdRoot.AddCommand(cmdGC)
}

func runGC(ctx context.Context) error {
	repo, err := OpenRepository(ctx)
	if err != nil {
		return err
	}

	plan, err := gc.Scan(ctx, repo, gcOptions.Tolerance)
	if err != nil {
		return err
	}

	fmt.Printf("total packs:      %d\n", plan.Stats.TotalPacks)
	fmt.Printf("unused packs:     %d\n", plan.Stats.UnusedPacks)
	fmt.Printf("obsolete packs:   %d\n", plan.Stats.ObsoletePacks)
	fmt.Printf("tolerated packs:  %d\n", plan.Stats.ToleratedPacks)
	fmt.Printf("dangling blobs:   %d\n", plan.Stats.DanglingBlobs)

	if gcOptions.DryRun {
		fmt.Println("dry run, not making any changes")
		return nil
	}

	if err := plan.Execute(ctx, int(repo.Connections())); err != nil {
		return err
	}

	fmt.Printf("repacked blobs:   %d\n", plan.Stats.RepackedBlobs)
	return nil
}
