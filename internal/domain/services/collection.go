package services

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/ersonp/history-map/internal/domain/chrono"
	"github.com/ersonp/history-map/internal/domain/entities"
)

// DedupPolicy decides whether Add skips candidates that look like existing events.
type DedupPolicy string

const (
	// DedupNone inserts every candidate.
	DedupNone DedupPolicy = "none"
	// DedupTitleYear skips a candidate whose title and year match an existing event.
	// Distinct events sharing both are conflated.
	DedupTitleYear DedupPolicy = "title-year"
)

// ParseDedupPolicy validates a configured policy name. Empty means DedupNone.
func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch DedupPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DedupNone:
		return DedupNone, nil
	case DedupTitleYear:
		return DedupTitleYear, nil
	default:
		return "", fmt.Errorf("unknown dedup policy %q (valid: none, title-year)", s)
	}
}

// Collection is the ordered set of events plus the current selection.
// Every mutation leaves the slice fully sorted by chrono.Compare.
// It is not safe for concurrent use; the owner serializes access.
type Collection struct {
	events   []entities.Event
	selected string
	newID    func() string
}

// NewCollection creates a collection holding events.
func NewCollection(events []entities.Event) *Collection {
	c := &Collection{newID: uuid.NewString}
	c.Replace(events)
	return c
}

// Replace swaps in records loaded from storage. Missing or repeated ids are
// regenerated, every record is marked saved, and the selection is cleared.
// Dates are not validated here so loaded user data is never dropped.
func (c *Collection) Replace(events []entities.Event) {
	seen := make(map[string]bool, len(events))
	out := make([]entities.Event, 0, len(events))
	for _, e := range events {
		if e.ID == "" || seen[e.ID] {
			e.ID = c.newID()
		}
		seen[e.ID] = true
		e.IsSaved = true
		out = append(out, e)
	}
	chrono.SortEvents(out)
	c.events = out
	c.selected = ""
}

// Add validates the whole batch, then inserts each event. An event whose id
// already exists replaces that entry. Returns the events actually inserted;
// the first of them becomes the selection.
func (c *Collection) Add(events []entities.Event, policy DedupPolicy) ([]entities.Event, error) {
	for i := range events {
		if verr := ValidateEvent(events[i]); verr != nil {
			verr.Record = i + 1
			return nil, verr
		}
	}

	var added []entities.Event
	for _, e := range events {
		if policy == DedupTitleYear && c.hasTitleYear(e) {
			continue
		}
		if e.ID == "" {
			e.ID = c.newID()
		}
		e.IsSaved = true
		if i := c.indexOf(e.ID); i >= 0 {
			c.events[i] = e
		} else {
			c.events = append(c.events, e)
		}
		added = append(added, e)
	}

	if len(added) == 0 {
		return nil, nil
	}
	chrono.SortEvents(c.events)
	c.selected = added[0].ID
	return added, nil
}

// Update removes any entry with e's id and inserts e. An unknown id is inserted.
func (c *Collection) Update(e entities.Event) (entities.Event, error) {
	if verr := ValidateEvent(e); verr != nil {
		return entities.Event{}, verr
	}
	if e.ID == "" {
		e.ID = c.newID()
	}
	e.IsSaved = true

	c.events = slices.DeleteFunc(c.events, func(x entities.Event) bool { return x.ID == e.ID })
	c.events = append(c.events, e)
	chrono.SortEvents(c.events)
	return e, nil
}

// Delete removes the event with id and clears the selection if it pointed there.
func (c *Collection) Delete(id string) (entities.Event, error) {
	i := c.indexOf(id)
	if i < 0 {
		return entities.Event{}, fmt.Errorf("deleting %q: %w", id, ErrEventNotFound)
	}
	removed := c.events[i]
	c.events = slices.Delete(c.events, i, i+1)
	if c.selected == id {
		c.selected = ""
	}
	return removed, nil
}

// Events returns a copy of the ordered events.
func (c *Collection) Events() []entities.Event {
	return slices.Clone(c.events)
}

// Len returns the number of events.
func (c *Collection) Len() int {
	return len(c.events)
}

// Get finds an event by id.
func (c *Collection) Get(id string) (entities.Event, bool) {
	if i := c.indexOf(id); i >= 0 {
		return c.events[i], true
	}
	return entities.Event{}, false
}

// Select marks id as the current selection.
func (c *Collection) Select(id string) error {
	if c.indexOf(id) < 0 {
		return fmt.Errorf("selecting %q: %w", id, ErrEventNotFound)
	}
	c.selected = id
	return nil
}

// Selected returns the selected event, if any.
func (c *Collection) Selected() (entities.Event, bool) {
	if c.selected == "" {
		return entities.Event{}, false
	}
	return c.Get(c.selected)
}

// Filter returns the events matching query, in collection order.
func (c *Collection) Filter(query string) []entities.Event {
	out := make([]entities.Event, 0, len(c.events))
	for _, e := range c.events {
		if e.Matches(query) {
			out = append(out, e)
		}
	}
	return out
}

func (c *Collection) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(c.events, func(e entities.Event) bool { return e.ID == id })
}

func (c *Collection) hasTitleYear(e entities.Event) bool {
	year := chrono.Year(e.DateStr)
	return slices.ContainsFunc(c.events, func(x entities.Event) bool {
		return x.Title == e.Title && chrono.Year(x.DateStr) == year
	})
}

// ValidateEvent checks the fields every stored event must satisfy.
func ValidateEvent(e entities.Event) *ValidationError {
	if strings.TrimSpace(e.Title) == "" {
		return &ValidationError{Field: "title", Message: "missing required field: title"}
	}
	if strings.TrimSpace(e.DateStr) == "" {
		return &ValidationError{Field: "date", Message: "missing required field: date"}
	}
	if !chrono.Valid(e.DateStr) {
		return &ValidationError{
			Field:   "date",
			Value:   e.DateStr,
			Message: fmt.Sprintf("invalid date %q (must start with a year, e.g. 1990-05-01 or -221)", e.DateStr),
		}
	}
	if e.Location.Lat < -90 || e.Location.Lat > 90 {
		return &ValidationError{
			Field:   "latitude",
			Value:   fmt.Sprint(e.Location.Lat),
			Message: fmt.Sprintf("latitude %v out of range [-90, 90]", e.Location.Lat),
		}
	}
	if e.Location.Lng < -180 || e.Location.Lng > 180 {
		return &ValidationError{
			Field:   "longitude",
			Value:   fmt.Sprint(e.Location.Lng),
			Message: fmt.Sprintf("longitude %v out of range [-180, 180]", e.Location.Lng),
		}
	}
	return nil
}
