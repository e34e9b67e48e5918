package parsers

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Canonical manual-entry field names.
const (
	FieldTitle       = "title"
	FieldDate        = "date"
	FieldLocation    = "location"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldDescription = "description"
	FieldCategory    = "category"
)

const recordSeparator = "--"

// fieldAliases maps lowercase field names, English and Chinese, to canonical names.
var fieldAliases = map[string]string{
	"title": FieldTitle, "name": FieldTitle, "标题": FieldTitle, "名称": FieldTitle, "事件": FieldTitle,

	"date": FieldDate, "datestr": FieldDate, "日期": FieldDate, "时间": FieldDate,

	"location": FieldLocation, "location-name": FieldLocation, "place": FieldLocation,
	"地点": FieldLocation, "地名": FieldLocation, "位置": FieldLocation,

	"latitude": FieldLatitude, "lat": FieldLatitude, "纬度": FieldLatitude,

	"longitude": FieldLongitude, "lng": FieldLongitude, "lon": FieldLongitude, "经度": FieldLongitude,

	"description": FieldDescription, "desc": FieldDescription, "描述": FieldDescription, "简介": FieldDescription,

	"category": FieldCategory, "分类": FieldCategory, "类别": FieldCategory,
}

// CanonicalField resolves an alias. The second result is false for unknown names.
func CanonicalField(name string) (string, bool) {
	f, ok := fieldAliases[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// ManualParser parses hand-written records:
//
//	title::Battle of Red Cliffs
//	date::208-09
//	lat::29.8
//	--
//	title::...
//
// A line holding only "--" ends a record; blank lines are ignored.
// The first malformed line fails the whole input.
type ManualParser struct{}

// Parse reads manual records from the reader.
func (p *ManualParser) Parse(r io.Reader) ([]RawEvent, error) {
	var (
		events  []RawEvent
		current = newRecordBuilder(1)
		lineNum int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == recordSeparator:
			if !current.empty() {
				events = append(events, current.event)
				current = newRecordBuilder(current.event.Record + 1)
			}
			continue
		}

		if err := current.addLine(line, lineNum); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manual records: %w", err)
	}

	if !current.empty() {
		events = append(events, current.event)
	}

	return events, nil
}

type recordBuilder struct {
	event RawEvent
	seen  map[string]bool
}

func newRecordBuilder(record int) *recordBuilder {
	return &recordBuilder{
		event: RawEvent{Record: record},
		seen:  make(map[string]bool),
	}
}

func (b *recordBuilder) empty() bool {
	return len(b.seen) == 0
}

func (b *recordBuilder) addLine(line string, lineNum int) error {
	rawField, value, ok := strings.Cut(line, "::")
	if !ok {
		return b.errorf(lineNum, "", "expected field::value, got %q", line)
	}
	rawField = strings.TrimSpace(rawField)
	value = strings.TrimSpace(value)

	field, known := CanonicalField(rawField)
	if !known {
		return b.errorf(lineNum, rawField, "unknown field %q", rawField)
	}
	if b.seen[field] {
		return b.errorf(lineNum, field, "duplicate field %q", rawField)
	}
	b.seen[field] = true

	switch field {
	case FieldTitle:
		b.event.Title = value
	case FieldDate:
		b.event.DateStr = value
	case FieldDescription:
		b.event.Description = value
	case FieldCategory:
		b.event.Category = value
	case FieldLocation:
		b.location().Name = value
	case FieldLatitude, FieldLongitude:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return b.errorf(lineNum, field, "%s %q is not a number", field, value)
		}
		if field == FieldLatitude {
			b.location().Lat = &v
		} else {
			b.location().Lng = &v
		}
	}
	return nil
}

func (b *recordBuilder) location() *RawLocation {
	if b.event.Location == nil {
		b.event.Location = &RawLocation{}
	}
	return b.event.Location
}

func (b *recordBuilder) errorf(lineNum int, field, format string, args ...any) error {
	return &SyntaxError{
		Record:  b.event.Record,
		Line:    lineNum,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}
