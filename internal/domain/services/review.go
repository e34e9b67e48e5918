package services

import (
	"fmt"
	"slices"

	"github.com/ersonp/history-map/internal/domain/entities"
)

// Source identifies how a batch of candidates was produced.
type Source string

const (
	SourceNames  Source = "names"
	SourceSearch Source = "search"
	SourceManual Source = "manual"
	SourceImport Source = "import"
)

// FromCompleter reports whether candidates came from the completion service.
func (s Source) FromCompleter() bool {
	return s == SourceNames || s == SourceSearch
}

// Review is a staged batch of candidates awaiting confirmation.
// Every candidate starts selected.
type Review struct {
	Source     Source
	Input      string
	Candidates []entities.Event
	Dropped    int // candidates rejected by validation before staging
	selected   []bool
}

func newReview(source Source, input string, candidates []entities.Event, dropped int) *Review {
	selected := make([]bool, len(candidates))
	for i := range selected {
		selected[i] = true
	}
	return &Review{
		Source:     source,
		Input:      input,
		Candidates: candidates,
		Dropped:    dropped,
		selected:   selected,
	}
}

// Len returns the number of candidates.
func (r *Review) Len() int {
	return len(r.Candidates)
}

// IsSelected reports whether candidate i will be merged.
func (r *Review) IsSelected(i int) bool {
	return i >= 0 && i < len(r.selected) && r.selected[i]
}

// Toggle flips the selection of candidate i.
func (r *Review) Toggle(i int) error {
	if i < 0 || i >= len(r.selected) {
		return fmt.Errorf("candidate %d out of range [0, %d)", i, len(r.selected))
	}
	r.selected[i] = !r.selected[i]
	return nil
}

// SelectOnly selects exactly the given candidates.
func (r *Review) SelectOnly(indices []int) error {
	for _, i := range indices {
		if i < 0 || i >= len(r.selected) {
			return fmt.Errorf("candidate %d out of range [0, %d)", i, len(r.selected))
		}
	}
	for i := range r.selected {
		r.selected[i] = slices.Contains(indices, i)
	}
	return nil
}

// Selected returns the selected candidates in order.
func (r *Review) Selected() []entities.Event {
	var out []entities.Event
	for i, e := range r.Candidates {
		if r.selected[i] {
			out = append(out, e)
		}
	}
	return out
}

func (r *Review) clone() *Review {
	c := *r
	c.Candidates = slices.Clone(r.Candidates)
	c.selected = slices.Clone(r.selected)
	return &c
}
