package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newEditCmd() *cobra.Command {
	var fields eventFields

	cmd := &cobra.Command{
		Use:   "edit <event-id>",
		Short: "Change fields of an event",
		Long:  "Updates only the fields given as flags; the rest keep their current values.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !fields.changed(cmd) {
				return fmt.Errorf("nothing to change; pass at least one field flag")
			}

			ctx := cmd.Context()
			return withWorkspace(ctx, func(d *Deps) error {
				e, err := d.Workspace.Get(args[0])
				if err != nil {
					return err
				}
				fields.apply(cmd, &e)

				updated, err := d.Workspace.UpdateEvent(ctx, e)
				if err != nil {
					return err
				}
				fmt.Println("Updated:")
				printEvent(color.Output, updated)
				return nil
			})
		},
	}

	fields.register(cmd)

	return cmd
}
