package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cmdInit = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		repo, err := CreateRepository(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("created repository %v at %v\n", repo.Config().ID, globalOptions.Repo)
		return nil
	},
}

func init() {
	cmdRoot.AddCommand(cmdInit)
}
