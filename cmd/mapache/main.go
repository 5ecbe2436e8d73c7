package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jLantxa/mapache-sub000/internal/debug"
	"github.com/jLantxa/mapache-sub000/internal/errors"
)

var version = "0.1.0-dev"

var cmdRoot = &cobra.Command{
	Use:   "mapache",
	Short: "Incremental, deduplicating, encrypted backups",
	Long: `
mapache is a backup program that saves snapshots of files and directories
in an encrypted, content-addressed repository.
`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if globalOptions.Quiet && globalOptions.Verbose {
			return errors.Fatal("--quiet and --verbose cannot be used together")
		}
		return nil
	},
}

func main() {
	cmdRoot.SetVersionTemplate("mapache {{.Version}}\n")
	cmdRoot.Version = version

	ctx := context.Background()
	err := cmdRoot.ExecuteContext(ctx)

	switch {
	case errors.IsFatal(err):
		fmt.Fprintf(os.Stderr, "%v\n", err)
		Exit(1)
	case err != nil:
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		Exit(1)
	}
}

// Exit ends the process with the given code, after the debug subsystem
// has had a chance to flush its log.
func Exit(code int) {
	debug.Log("exiting with status code %d", code)
	os.Exit(code)
}
