package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/history-map/internal/domain/entities"
	"github.com/ersonp/history-map/internal/domain/services"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add events by name, by search, from field::value text, or one at a time",
	}

	cmd.AddCommand(
		newAddNamesCmd(),
		newAddSearchCmd(),
		newAddManualCmd(),
		newAddEventCmd(),
	)

	return cmd
}

func newAddNamesCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "names [name...]",
		Short: "Look up events by name",
		Long:  "Asks the completion provider to fill in each named event. Without arguments, names are read from stdin, one per line.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, "\n")
			if len(args) == 0 {
				input, err := readInput("", "Enter event names, one per line. Finish with Ctrl-D.")
				if err != nil {
					return err
				}
				text = input
			}

			ctx := cmd.Context()
			return withWorkspace(ctx, func(d *Deps) error {
				fmt.Println("Identifying events...")
				review, err := d.Workspace.AnalyzeNames(ctx, text)
				if err != nil {
					return err
				}
				return resolveReview(ctx, d.Workspace, review, yes)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Add every candidate without asking")

	return cmd
}

func newAddSearchCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find events related to a topic, period or place",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withWorkspace(ctx, func(d *Deps) error {
				fmt.Println("Searching...")
				review, err := d.Workspace.Search(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return resolveReview(ctx, d.Workspace, review, yes)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Add every result without asking")

	return cmd
}

func newAddManualCmd() *cobra.Command {
	var (
		file string
		yes  bool
	)

	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Add events written as field::value lines",
		Long: `Reads records of field::value lines separated by "--" from --file or stdin.

  title::Battle of Red Cliffs
  date::208-12
  lat::29.87
  lng::113.62
  --

Fields: title, date, description, location, lat, lng, category. Chinese names
such as 标题 and 日期 are accepted too.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(file, "Enter records, separated by '--'. Finish with Ctrl-D.")
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withWorkspace(ctx, func(d *Deps) error {
				review, err := d.Workspace.ImportManual(text)
				if err != nil {
					return err
				}
				return resolveReview(ctx, d.Workspace, review, yes)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read records from file instead of stdin")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Add every record without asking")

	return cmd
}

func newAddEventCmd() *cobra.Command {
	var fields eventFields

	cmd := &cobra.Command{
		Use:   "event",
		Short: "Add a single event from flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			var e entities.Event
			fields.apply(cmd, &e)

			ctx := cmd.Context()
			return withWorkspace(ctx, func(d *Deps) error {
				added, err := d.Workspace.AddEvents(ctx, []entities.Event{e}, services.DedupNone)
				if err != nil {
					return err
				}
				for _, a := range added {
					fmt.Printf("Added %s (%s)\n", a.Title, a.ID)
				}
				return nil
			})
		},
	}

	fields.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

// eventFields binds event attributes to flags shared by add and edit.
type eventFields struct {
	title       string
	date        string
	description string
	location    string
	lat         float64
	lng         float64
	category    string
}

func (f *eventFields) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Event title")
	cmd.Flags().StringVar(&f.date, "date", "", `Date as YYYY, YYYY-MM or YYYY-MM-DD; "-221" for 221 BCE`)
	cmd.Flags().StringVar(&f.description, "description", "", "Short description")
	cmd.Flags().StringVar(&f.location, "location", "", "Place name")
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&f.lng, "lng", 0, "Longitude")
	cmd.Flags().StringVar(&f.category, "category", "", "Category")
}

var eventFlagNames = []string{"title", "date", "description", "location", "lat", "lng", "category"}

// changed reports whether any event flag was set.
func (f *eventFields) changed(cmd *cobra.Command) bool {
	for _, name := range eventFlagNames {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// apply copies the flags that were set onto e.
func (f *eventFields) apply(cmd *cobra.Command, e *entities.Event) {
	flags := cmd.Flags()
	if flags.Changed("title") {
		e.Title = strings.TrimSpace(f.title)
	}
	if flags.Changed("date") {
		e.DateStr = strings.TrimSpace(f.date)
	}
	if flags.Changed("description") {
		e.Description = strings.TrimSpace(f.description)
	}
	if flags.Changed("location") {
		e.Location.Name = strings.TrimSpace(f.location)
	}
	if flags.Changed("lat") {
		e.Location.Lat = f.lat
	}
	if flags.Changed("lng") {
		e.Location.Lng = f.lng
	}
	if flags.Changed("category") {
		e.Category = strings.TrimSpace(f.category)
	}
}

// readInput returns the content of path, or of stdin when path is empty.
func readInput(path, hint string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	}

	if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		fmt.Println(hint)
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}
