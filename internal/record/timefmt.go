package record

import (
	"fmt"
	"strings"
	"time"
)

// ISOLayout matches the millisecond UTC form browsers emit for toISOString.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// DisplayLayout is used for Opened/Completed columns in CSV exports.
const DisplayLayout = "2006-01-02 15:04:05"

// FormatISO renders t as an ISO-8601 UTC timestamp with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseTime parses an ISO-8601 timestamp. ok is false for empty or invalid input.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDisplay renders an ISO timestamp in loc for display, or "" when unparsable.
func FormatDisplay(s string, loc *time.Location) string {
	t, ok := ParseTime(s)
	if !ok {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DisplayLayout)
}

// HandleTime returns completedAt-openedAt. ok is false when either timestamp
// is missing or unparsable, or the case completed before it opened.
func HandleTime(openedAt, completedAt string) (time.Duration, bool) {
	start, ok := ParseTime(openedAt)
	if !ok {
		return 0, false
	}
	end, ok := ParseTime(completedAt)
	if !ok {
		return 0, false
	}
	if end.Before(start) {
		return 0, false
	}
	return end.Sub(start), true
}

// FormatMinSec renders the "Time Taken" column: zero-padded mm:ss, minutes unbounded.
// Returns "" when HandleTime is not ok.
func FormatMinSec(openedAt, completedAt string) string {
	d, ok := HandleTime(openedAt, completedAt)
	if !ok {
		return ""
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// IsAbort reports whether a case type counts as an aborted case.
func IsAbort(caseType string) bool {
	return strings.Contains(strings.ToLower(caseType), "abort")
}
