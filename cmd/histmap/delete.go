package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <event-id>...",
		Short: "Delete events",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withWorkspace(ctx, func(d *Deps) error {
				for _, id := range args {
					e, err := d.Workspace.Get(id)
					if err != nil {
						return err
					}
					if !force && !confirmAction(fmt.Sprintf("Delete %q (%s)?", e.Title, e.DateStr)) {
						fmt.Println("Skipped.")
						continue
					}
					if _, err := d.Workspace.DeleteEvent(ctx, id); err != nil {
						return err
					}
					fmt.Printf("Deleted event: %s\n", id)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
