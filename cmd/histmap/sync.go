package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Write pending changes to the gist now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{restore: true}, func(d *Deps) error {
				if err := d.Workspace.Sync(ctx); err != nil {
					return reportSyncErr(err)
				}
				fmt.Printf("Synchronized %d events.\n", d.Workspace.Status().Events)
				return nil
			})
		},
	}
}
