// Package dateutil converts calendar dates between the ISO form used by the
// backend (YYYY-MM-DD) and the Italian display form (DD/MM/YYYY).
package dateutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// ISOLayout is the wire format of dates exchanged with the backend.
	ISOLayout = time.DateOnly
	// DisplayLayout is the format shown to users.
	DisplayLayout = "02/01/2006"
)

// Now is the clock used by Today and TodayISO.
var Now = time.Now

var (
	isoPattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	displayPattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
)

// Layouts accepted by ToDisplay, tried in order. Timestamps keep their own
// wall clock: no conversion to the local zone is made.
var parseLayouts = []string{
	ISOLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ToDisplay converts an ISO date (or timestamp) to DD/MM/YYYY. Input that
// cannot be parsed is returned unchanged.
func ToDisplay(s string) string {
	v := strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return FormatDisplay(t)
		}
	}
	return s
}

// FormatDisplay formats the wall-clock date of t as DD/MM/YYYY.
func FormatDisplay(t time.Time) string {
	return fmt.Sprintf("%02d/%02d/%04d", t.Day(), int(t.Month()), t.Year())
}

// FormatISO formats the wall-clock date of t as YYYY-MM-DD.
func FormatISO(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// ToISO converts DD/MM/YYYY to YYYY-MM-DD, padding day and month. The year is
// kept as given. Strings already in ISO shape pass through, and anything that
// does not split into three parts is returned unchanged.
func ToISO(s string) string {
	if IsISO(s) {
		return s
	}
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return s
	}
	return fmt.Sprintf("%s-%s-%s", parts[2], padLeft(parts[1], 2), padLeft(parts[0], 2))
}

// IsISO reports whether s has the YYYY-MM-DD shape. It does not check that
// the date exists.
func IsISO(s string) bool {
	return isoPattern.MatchString(s)
}

// Today returns the current local date as DD/MM/YYYY.
func Today() string {
	return FormatDisplay(Now())
}

// TodayISO returns the current local date as YYYY-MM-DD.
func TodayISO() string {
	return FormatISO(Now())
}

// IsValidDisplayDate reports whether s is a real calendar date in DD/MM/YYYY
// form with a year between 1900 and 2100.
func IsValidDisplayDate(s string) bool {
	if !displayPattern.MatchString(s) {
		return false
	}
	day, _ := strconv.Atoi(s[0:2])
	month, _ := strconv.Atoi(s[3:5])
	year, _ := strconv.Atoi(s[6:10])

	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1900 || year > 2100 {
		return false
	}

	// time.Date normalizes overflow (31/02 becomes 02/03), so compare back.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day && int(t.Month()) == month && t.Year() == year
}

// ParseISO parses a YYYY-MM-DD date at midnight UTC.
func ParseISO(s string) (time.Time, error) {
	t, err := time.Parse(ISOLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ParseMonth parses a YYYY-MM month selector.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse month %q: %w", s, err)
	}
	return t.Year(), t.Month(), nil
}

// MonthRange returns the first and last day of the month as ISO dates.
func MonthRange(year int, month time.Month) (start, end string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return FormatISO(first), FormatISO(last)
}

// MonthDays lists every day of the month, first to last inclusive, as ISO
// dates.
func MonthDays(year int, month time.Month) []string {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	var days []string
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		days = append(days, FormatISO(d))
	}
	return days
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
