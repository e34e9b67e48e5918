package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/history-map/internal/domain/chrono"
	"github.com/ersonp/history-map/internal/domain/entities"
)

type exportFlags struct {
	format string
	output string
	filter string
}

type exporter struct {
	format string
	output string
}

func newExportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export events to file",
		Long:  "Exports events to JSON (the gist format), CSV, or a markdown timeline. JSON and CSV output can be imported again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "Output format (json, csv, markdown)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&flags.filter, "filter", "q", "", "Only export events matching text")

	return cmd
}

func runExport(cmd *cobra.Command, flags exportFlags) error {
	if !slices.Contains(validFormats, flags.format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", flags.format, validFormats)
	}

	return withDeps(cmd.Context(), depsOptions{restore: true}, func(d *Deps) error {
		groups, err := d.Workspace.Timeline(flags.filter)
		if err != nil {
			return err
		}
		var events []entities.Event
		for _, g := range groups {
			events = append(events, g.Events...)
		}
		if len(events) == 0 {
			return fmt.Errorf("no events found to export")
		}

		e := &exporter{
			format: flags.format,
			output: flags.output,
		}
		return e.export(events)
	})
}

func (e *exporter) export(events []entities.Event) (err error) {
	var w io.Writer
	var f *os.File

	if e.output != "" {
		f, err = os.OpenFile(e.output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("creating file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing file: %w", cerr)
			}
		}()
		w = f
	} else {
		w = os.Stdout
	}

	if err := e.formatEvents(w, events); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if e.output != "" {
		fmt.Printf("Exported %d events to %s\n", len(events), e.output)
	}

	return nil
}

func (e *exporter) formatEvents(w io.Writer, events []entities.Event) error {
	switch e.format {
	case "json":
		return formatJSON(w, events)
	case "csv":
		return formatCSV(w, events)
	case "markdown":
		return formatMarkdown(w, events)
	default:
		return fmt.Errorf("unknown format: %s", e.format)
	}
}

func formatJSON(w io.Writer, events []entities.Event) error {
	if events == nil {
		events = []entities.Event{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(events)
}

func formatCSV(w io.Writer, events []entities.Event) error {
	writer := csv.NewWriter(w)

	header := []string{"id", "title", "date", "description", "location", "lat", "lng", "category"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, e := range events {
		row := []string{
			e.ID,
			e.Title,
			e.DateStr,
			e.Description,
			e.Location.Name,
			strconv.FormatFloat(e.Location.Lat, 'f', -1, 64),
			strconv.FormatFloat(e.Location.Lng, 'f', -1, 64),
			e.Category,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatMarkdown(w io.Writer, events []entities.Event) error {
	if _, err := fmt.Fprintf(w, "# Historical Events\n\nTotal: %d events\n", len(events)); err != nil {
		return err
	}

	for _, g := range chrono.GroupByYear(events) {
		if _, err := fmt.Fprintf(w, "\n## %s\n\n", g.Label); err != nil {
			return err
		}
		for _, e := range g.Events {
			line := fmt.Sprintf("- **%s** %s", escapeMarkdown(e.DateStr), escapeMarkdown(e.Title))
			if label := locationLabel(e.Location); label != "" {
				line += fmt.Sprintf(" (%s)", escapeMarkdown(label))
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
			if e.Description != "" {
				if _, err := fmt.Fprintf(w, "  %s\n", escapeMarkdown(e.Description)); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
