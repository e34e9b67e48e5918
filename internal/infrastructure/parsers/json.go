package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses events from a JSON array, the same shape the remote
// document uses.
type JSONParser struct{}

// Parse reads JSON from the reader and returns parsed events.
func (p *JSONParser) Parse(r io.Reader) ([]RawEvent, error) {
	var events []RawEvent

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&events); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	for i := range events {
		events[i].Record = i + 1
	}

	return events, nil
}
