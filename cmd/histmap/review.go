package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/ersonp/history-map/internal/application/handlers"
	"github.com/ersonp/history-map/internal/domain/entities"
	"github.com/ersonp/history-map/internal/domain/services"
)

// stdin is shared so prompts don't lose buffered input between reads.
var stdin = bufio.NewReader(os.Stdin)

// printReview lists the candidates of a review with their selection marks.
func printReview(w io.Writer, r *services.Review) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "%d candidate(s) from %s:\n", r.Len(), r.Source)

	tbl := uitable.New()
	tbl.MaxColWidth = 50
	tbl.Wrap = true
	for i, e := range r.Candidates {
		mark := "[ ]"
		if r.IsSelected(i) {
			mark = color.GreenString("[x]")
		}
		tbl.AddRow(fmt.Sprintf("%d.", i+1), mark, e.DateStr, e.Title, locationLabel(e.Location))
	}
	_, _ = fmt.Fprintln(w, tbl)

	if r.Dropped > 0 {
		_, _ = color.New(color.Faint).Fprintf(w, "%d unusable result(s) were left out.\n", r.Dropped)
	}
}

// parseSelection reads "all", "none" or a list like "1,3 5-7" into
// zero-based indices. Empty input means all.
func parseSelection(input string, n int) ([]int, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	switch input {
	case "", "all", "a":
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	case "none", "n":
		return []int{}, nil
	}

	var out []int
	fields := strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ' ' })
	for _, f := range fields {
		lo, hi, isRange := strings.Cut(f, "-")
		if !isRange {
			hi = lo
		}
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", f)
		}
		to, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", f)
		}
		if from < 1 || to > n || from > to {
			return nil, fmt.Errorf("selection %q out of range 1-%d", f, n)
		}
		for i := from; i <= to; i++ {
			if !slices.Contains(out, i-1) {
				out = append(out, i-1)
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

// resolveReview asks which candidates to keep, unless acceptAll, and adds them.
func resolveReview(ctx context.Context, ws *handlers.Workspace, r *services.Review, acceptAll bool) error {
	printReview(color.Output, r)

	selected := len(r.Selected())
	if !acceptAll {
		fmt.Print("Add which? [all/none/1,3,5-7] (default all): ")
		line, err := stdin.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			ws.DiscardReview()
			return fmt.Errorf("reading selection: %w", err)
		}
		if errors.Is(err, io.EOF) && line == "" {
			line = "none"
		}

		indices, err := parseSelection(line, r.Len())
		if err != nil {
			ws.DiscardReview()
			return err
		}
		if len(indices) == 0 {
			ws.DiscardReview()
			fmt.Println("Nothing added.")
			return nil
		}
		if err := ws.SelectCandidates(indices); err != nil {
			ws.DiscardReview()
			return err
		}
		selected = len(indices)
	}

	added, err := ws.ConfirmReview(ctx)
	if err != nil {
		return err
	}
	printAdded(color.Output, r.Source, selected, added)
	return nil
}

func printAdded(w io.Writer, source services.Source, selected int, added []entities.Event) {
	fmt.Fprintf(w, "Added %d event(s).\n", len(added))
	if skipped := selected - len(added); skipped > 0 && source.FromCompleter() {
		fmt.Fprintf(w, "%d already in your collection (same title and year), skipped.\n", skipped)
	}
}

func locationLabel(loc entities.Location) string {
	switch {
	case loc.Name != "":
		return loc.Name
	case loc.Lat != 0 || loc.Lng != 0:
		return fmt.Sprintf("%.4f, %.4f", loc.Lat, loc.Lng)
	default:
		return ""
	}
}
