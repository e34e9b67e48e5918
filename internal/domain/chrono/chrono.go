// Package chrono turns free-form historical date strings into a total order.
//
// Accepted inputs are "YYYY", "YYYY-MM", "YYYY-MM-DD" and negative years
// ("-221") for BCE. Anything else orders as key 0. Nothing here returns an
// error: an unreadable date is still an event that must be placed somewhere.
package chrono

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/ersonp/history-map/internal/domain/entities"
)

// maxYear bounds magnitudes so time.Date stays well inside int64 seconds.
const maxYear = 1_000_000_000

var (
	leadingYear  = regexp.MustCompile(`^-?\d+`)
	bceYear      = regexp.MustCompile(`^-(\d+)`)
	calendarDate = regexp.MustCompile(`^(\d+)(?:-(\d{1,2})(?:-(\d{1,2}))?)?`)
	validDate    = regexp.MustCompile(`^-?\d`)

	epoch = time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Year returns the signed integer at the start of s, or 0 if there is none.
func Year(s string) int {
	m := leadingYear.FindString(s)
	if m == "" {
		return 0
	}
	y, err := strconv.Atoi(m)
	if err != nil || y > maxYear || y < -maxYear {
		return 0
	}
	return y
}

// Valid reports whether s starts with an optionally signed digit.
// This is the only shape check applied before a date is accepted.
func Valid(s string) bool {
	return validDate.MatchString(s)
}

// OrderKey maps s to seconds since 0000-01-01 UTC.
//
// A leading minus sign means BCE: "-N" is placed at January 1 of year -N,
// ignoring any month or day. Otherwise the longest YYYY[-MM[-DD]] prefix is
// used; an out-of-range month or day falls back to January 1 of that year.
func OrderKey(s string) int64 {
	if m := bceYear.FindStringSubmatch(s); m != nil {
		y, ok := parseYear(m[1])
		if !ok {
			return 0
		}
		return seconds(time.Date(-y, time.January, 1, 0, 0, 0, 0, time.UTC))
	}

	m := calendarDate.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	y, ok := parseYear(m[1])
	if !ok {
		return 0
	}
	return seconds(calendarInstant(y, m[2], m[3]))
}

// Compare orders two date strings by OrderKey. Equal keys compare as 0.
func Compare(a, b string) int {
	return cmp.Compare(OrderKey(a), OrderKey(b))
}

// SortEvents stably sorts events ascending by the order key of DateStr.
func SortEvents(events []entities.Event) {
	slices.SortStableFunc(events, func(a, b entities.Event) int {
		return Compare(a.DateStr, b.DateStr)
	})
}

// YearLabel renders a year for display: "221 BCE", "1990 CE".
func YearLabel(year int) string {
	if year < 0 {
		return fmt.Sprintf("%d BCE", -year)
	}
	return fmt.Sprintf("%d CE", year)
}

// YearGroup is a run of consecutive events sharing a year.
type YearGroup struct {
	Year   int
	Label  string
	Events []entities.Event
}

// GroupByYear splits an already sorted slice into consecutive year groups.
func GroupByYear(events []entities.Event) []YearGroup {
	var groups []YearGroup
	for _, e := range events {
		y := Year(e.DateStr)
		if n := len(groups); n > 0 && groups[n-1].Year == y {
			groups[n-1].Events = append(groups[n-1].Events, e)
			continue
		}
		groups = append(groups, YearGroup{Year: y, Label: YearLabel(y), Events: []entities.Event{e}})
	}
	return groups
}

func parseYear(digits string) (int, bool) {
	y, err := strconv.Atoi(digits)
	if err != nil || y > maxYear {
		return 0, false
	}
	return y, true
}

func calendarInstant(year int, monthStr, dayStr string) time.Time {
	fallback := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if monthStr == "" {
		return fallback
	}
	month, _ := strconv.Atoi(monthStr)
	if month < 1 || month > 12 {
		return fallback
	}
	if dayStr == "" {
		return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	}
	day, _ := strconv.Atoi(dayStr)
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if day < 1 || t.Day() != day {
		return fallback
	}
	return t
}

func seconds(t time.Time) int64 {
	return t.Unix() - epoch.Unix()
}
