package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/ersonp/history-map/internal/domain/chrono"
	"github.com/ersonp/history-map/internal/domain/entities"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), depsOptions{restore: true}, func(d *Deps) error {
				e, err := d.Workspace.Get(args[0])
				if err != nil {
					return err
				}
				printEvent(color.Output, e)
				return nil
			})
		},
	}
}

func printEvent(w io.Writer, e entities.Event) {
	_, _ = color.New(color.Bold).Fprintln(w, e.Title)

	tbl := uitable.New()
	tbl.MaxColWidth = 70
	tbl.Wrap = true
	tbl.AddRow("Date:", fmt.Sprintf("%s (%s)", e.DateStr, chrono.YearLabel(chrono.Year(e.DateStr))))
	if label := locationLabel(e.Location); label != "" {
		tbl.AddRow("Place:", label)
	}
	if e.Location.Lat != 0 || e.Location.Lng != 0 {
		tbl.AddRow("Coordinates:", fmt.Sprintf("%.4f, %.4f", e.Location.Lat, e.Location.Lng))
	}
	if e.Category != "" {
		tbl.AddRow("Category:", e.Category)
	}
	if e.Description != "" {
		tbl.AddRow("Description:", e.Description)
	}
	tbl.AddRow("ID:", e.ID)
	_, _ = fmt.Fprintln(w, tbl)
}
