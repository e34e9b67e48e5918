// Package main provides the entry point for the histmap CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"

	globalHome    string
	globalVerbose bool
	globalNoSync  bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := newRootCmd()
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "histmap",
		Short:         "A personal map of historical events, stored in a GitHub gist",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&globalHome, "home", "", "State directory (default $HISTMAP_HOME or ~/.histmap)")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&globalNoSync, "no-sync", false, "Keep changes in the local cache instead of writing them on exit")

	rootCmd.AddCommand(
		newInitCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newAddCmd(),
		newImportCmd(),
		newListCmd(),
		newShowCmd(),
		newEditCmd(),
		newDeleteCmd(),
		newSyncCmd(),
		newExportCmd(),
		newShellCmd(),
	)

	return rootCmd
}
