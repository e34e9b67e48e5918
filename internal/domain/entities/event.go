// Package entities contains core domain data structures.
package entities

import "strings"

// Location is where an event took place. Lat and Lng are decimal degrees.
type Location struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}

// Event is a single dated, located historical record.
//
// DateStr is kept verbatim as entered; ordering is derived from it on demand.
// IsSaved is runtime-only and never written to the remote document.
type Event struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DateStr     string   `json:"dateStr"`
	Location    Location `json:"location"`
	Category    string   `json:"category,omitempty"`
	IsSaved     bool     `json:"-"`
}

// Matches reports whether the event contains query (case-insensitive) in its
// title, location name, description or date string.
func (e Event) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, field := range []string{e.Title, e.Location.Name, e.Description, e.DateStr} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
