package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jLantxa/mapache-sub000/internal/checker"
	"github.com/jLantxa/mapache-sub000/internal/errors"
)

var checkOptions struct {
	ReadData bool
}

var cmdCheck = &cobra.Command{
	Use:   "check",
	Short: "Check the repository for errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.Context())
	},
}

func init() {
	f := cmdCheck.Flags()
	f.BoolVar(&checkOptions.ReadData, "read-data", false, "read and verify every pack's content, not just the index")
	cmdRoot.AddCommand(cmdCheck)
}

func runCheck(ctx context.Context) error {
	repo, err := OpenRepository(ctx)
	if err != nil {
		return err
	}

	chkr := checker.New(repo, true)

	if err := chkr.LoadSnapshots(ctx); err != nil {
		return err
	}
	if hints, errs := chkr.LoadIndex(ctx); len(hints) > 0 || len(errs) > 0 {
		for _, h := range hints {
			fmt.Printf("hint: %v\n", h)
		}
		for _, e := range errs {
			fmt.Printf("error: %v\n", e)
		}
	}

	failed := false

	packErrs := make(chan error)
	go chkr.Packs(ctx, packErrs)
	for e := range packErrs {
		fmt.Printf("pack error: %v\n", e)
		failed = true
	}

	structErrs := make(chan error)
	go chkr.Structure(ctx, nil, structErrs)
	for e := range structErrs {
		fmt.Printf("structure error: %v\n", e)
		failed = true
	}

	if checkOptions.ReadData {
		dataErrs := make(chan error)
		go chkr.ReadData(ctx, dataErrs)
		for e := range dataErrs {
			fmt.Printf("data error: %v\n", e)
			failed = true
		}
	}

	if failed {
		return errors.Fatal("repository check found errors")
	}

	fmt.Println("no errors found")
	return nil
}
