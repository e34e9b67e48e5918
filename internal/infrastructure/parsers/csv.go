package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVParser parses events from CSV format.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed events.
// Expected columns: title, date, description, location, lat, lng, category, id
func (p *CSVParser) Parse(r io.Reader) ([]RawEvent, error) {
	reader := csv.NewReader(r)

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	for _, col := range []string{"title", "date"} {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to RawEvents.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]RawEvent, error) {
	var events []RawEvent
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		event, err := p.parseRecord(record, colIndex, len(events)+1, lineNum)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}

// parseRecord converts a CSV record to a RawEvent.
func (p *CSVParser) parseRecord(record []string, colIndex map[string]int, recordNum, lineNum int) (RawEvent, error) {
	event := RawEvent{
		ID:          getColumn(record, colIndex, "id"),
		Title:       getColumn(record, colIndex, "title"),
		DateStr:     getColumn(record, colIndex, "date"),
		Description: getColumn(record, colIndex, "description"),
		Category:    getColumn(record, colIndex, "category"),
		Record:      recordNum,
	}

	loc := RawLocation{Name: getColumn(record, colIndex, "location")}
	hasLoc := loc.Name != ""
	for _, col := range []string{"lat", "lng"} {
		raw := getColumn(record, colIndex, col)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return RawEvent{}, &SyntaxError{
				Record:  recordNum,
				Line:    lineNum,
				Field:   col,
				Message: fmt.Sprintf("invalid %s value %q", col, raw),
			}
		}
		if col == "lat" {
			loc.Lat = &v
		} else {
			loc.Lng = &v
		}
		hasLoc = true
	}
	if hasLoc {
		event.Location = &loc
	}

	return event, nil
}

// getColumn safely retrieves a trimmed column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
