// Package parsers provides parsers for importing events from various formats.
package parsers

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// RawEvent is an event read from an external source before validation.
type RawEvent struct {
	ID          string       `json:"id,omitempty"`
	Title       string       `json:"title"`
	DateStr     string       `json:"dateStr"`
	Description string       `json:"description,omitempty"`
	Location    *RawLocation `json:"location,omitempty"`
	Category    string       `json:"category,omitempty"`
	Record      int          `json:"-"` // 1-indexed position in the source (set by parser)
}

// RawLocation is the optional location block of a RawEvent.
type RawLocation struct {
	Lat  *float64 `json:"lat,omitempty"` // Pointer to distinguish 0 from unset
	Lng  *float64 `json:"lng,omitempty"`
	Name string   `json:"name,omitempty"`
}

// SyntaxError reports input that could not be split into fields.
type SyntaxError struct {
	Record  int
	Line    int
	Field   string
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("record %d (line %d): %s", e.Record, e.Line, e.Message)
	}
	return fmt.Sprintf("record %d: %s", e.Record, e.Message)
}

// Parser defines the interface for parsing events from various formats.
type Parser interface {
	Parse(r io.Reader) ([]RawEvent, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv", "manual".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	case "manual", "text", "txt":
		return &ManualParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONParser{}
	case ".csv":
		return &CSVParser{}
	case ".txt", ".md":
		return &ManualParser{}
	default:
		return nil
	}
}
