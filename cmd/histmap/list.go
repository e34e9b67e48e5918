package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/ersonp/history-map/internal/domain/chrono"
)

func newListCmd() *cobra.Command {
	var (
		filter  string
		showIDs bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events as a timeline",
		Long:  "Lists events in chronological order, grouped by year. --filter matches title, place, description and date.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), depsOptions{restore: true}, func(d *Deps) error {
				groups, err := d.Workspace.Timeline(filter)
				if err != nil {
					return err
				}
				if len(groups) == 0 {
					fmt.Println("No events found.")
					return nil
				}
				printTimeline(color.Output, groups, showIDs)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "q", "", "Only show events matching text")
	cmd.Flags().BoolVar(&showIDs, "ids", false, "Show event ids")

	return cmd
}

func printTimeline(w io.Writer, groups []chrono.YearGroup, showIDs bool) {
	title := color.New(color.Bold, color.Underline)
	faint := color.New(color.Faint)

	total := 0
	for _, g := range groups {
		_, _ = title.Fprint(w, g.Label)
		_, _ = faint.Fprintf(w, " - %d\n", len(g.Events))

		tbl := uitable.New()
		tbl.Separator = "  "
		tbl.MaxColWidth = 60
		for _, e := range g.Events {
			row := []any{e.DateStr, e.Title, locationLabel(e.Location)}
			if showIDs {
				row = append(row, faint.Sprint(e.ID))
			}
			tbl.AddRow(row...)
		}
		_, _ = fmt.Fprintln(w, tbl)
		_, _ = fmt.Fprintln(w)
		total += len(g.Events)
	}
	_, _ = faint.Fprintf(w, "%d event(s) in %d year(s)\n", total, len(groups))
}
