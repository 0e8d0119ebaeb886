// Package stats computes the performance report over a store snapshot.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hpungsan/casetrack/internal/errors"
	"github.com/hpungsan/casetrack/internal/record"
)

// Unassigned labels items without a case type in the by-type breakdown.
const Unassigned = "Unassigned"

// TrendDays is the length of the daily completion trend.
const TrendDays = 14

// Range is an inclusive time window.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether the ISO timestamp ts falls in r.
func (r Range) Contains(ts string) bool {
	t, ok := record.ParseTime(ts)
	if !ok {
		return false
	}
	return !t.Before(r.Start) && !t.After(r.End)
}

// Hours is the length of r in hours.
func (r Range) Hours() float64 {
	return r.End.Sub(r.Start).Hours()
}

// Quick range names.
const (
	RangeToday     = "today"
	RangeYesterday = "yesterday"
	RangeWeek      = "week"
	RangeMonth     = "month"
	RangeAll       = "all"
)

// QuickRange resolves a named range relative to now in loc.
// "all" and "" return nil (no range).
func QuickRange(name string, now time.Time, loc *time.Location) (*Range, error) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", RangeAll:
		return nil, nil
	case RangeToday:
		return &Range{Start: midnight, End: now}, nil
	case RangeYesterday:
		start := midnight.AddDate(0, 0, -1)
		return &Range{Start: start, End: midnight.Add(-time.Millisecond)}, nil
	case RangeWeek:
		return &Range{Start: midnight.AddDate(0, 0, -int(now.Weekday())), End: now}, nil
	case RangeMonth:
		return &Range{Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc), End: now}, nil
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown range %q (want today, yesterday, week, month or all)", name))
}

// boundLayouts are accepted for custom range bounds. The last three are
// interpreted in the configured location.
var boundLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", time.DateOnly}

// ParseBound parses a custom range bound.
func ParseBound(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range boundLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.NewInvalidRequest(fmt.Sprintf("invalid time %q (want RFC 3339 or YYYY-MM-DD[THH:MM])", s))
}

// Resolve picks a custom range when start or end is set, else the quick range
// name. A missing custom start is open; a missing end is now.
func Resolve(name, start, end string, now time.Time, loc *time.Location) (*Range, error) {
	if loc == nil {
		loc = time.Local
	}
	if strings.TrimSpace(start) == "" && strings.TrimSpace(end) == "" {
		return QuickRange(name, now, loc)
	}

	r := &Range{End: now.In(loc)}
	if strings.TrimSpace(start) != "" {
		t, err := ParseBound(start, loc)
		if err != nil {
			return nil, err
		}
		r.Start = t
	}
	if strings.TrimSpace(end) != "" {
		t, err := ParseBound(end, loc)
		if err != nil {
			return nil, err
		}
		r.End = t
	}
	if r.End.Before(r.Start) {
		return nil, errors.NewInvalidRequest("range end is before start")
	}
	return r, nil
}

// Filter narrows the snapshot before computing a report.
type Filter struct {
	Range    *Range
	CaseType string // case-insensitive exact match; "" disables
}

// HandleTime is a duration with its display form.
type HandleTime struct {
	Millis  int64  `json:"ms"`
	Display string `json:"display"`
}

func newHandleTime(d time.Duration) *HandleTime {
	return &HandleTime{Millis: d.Milliseconds(), Display: FormatHandleTime(d)}
}

// Summary holds the headline numbers.
type Summary struct {
	QueueLoad  int         `json:"queueLoad"`
	Completed  int         `json:"completed"`
	Aborted    int         `json:"aborted"`
	Average    HandleTime  `json:"averageHandleTime"`
	Fastest    *HandleTime `json:"fastest"`
	Slowest    *HandleTime `json:"slowest"`
	Measured   int         `json:"casesMeasured"`
	Throughput *float64    `json:"casesPerHour"`
}

// TypeCount is one row of the by-type breakdown.
type TypeCount struct {
	Type      string `json:"type"`
	Queued    int    `json:"queued"`
	Completed int    `json:"completed"`
}

// Total is Queued+Completed.
func (t TypeCount) Total() int { return t.Queued + t.Completed }

// DayCount is one day of the completion trend.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Report is the full performance report.
type Report struct {
	GeneratedAt time.Time   `json:"generatedAt"`
	Range       *Range      `json:"range"`
	CaseType    string      `json:"caseType,omitempty"`
	Summary     Summary     `json:"summary"`
	ByType      []TypeCount `json:"byType"`
	Trend       []DayCount  `json:"trend"`
	Hourly      [24]int     `json:"hourly"`
}

// Compute builds a report from data. now anchors the trend; loc is the
// zone for calendar days and hours.
func Compute(data record.Data, f Filter, now time.Time, loc *time.Location) Report {
	if loc == nil {
		loc = time.Local
	}
	queue, history := apply(data, f)

	r := Report{
		GeneratedAt: now,
		Range:       f.Range,
		CaseType:    strings.TrimSpace(f.CaseType),
		Summary:     summarize(queue, history, f.Range),
		ByType:      byType(queue, history),
		Trend:       trend(history, now, loc),
	}
	for _, item := range history {
		if t, ok := record.ParseTime(item.CompletedAt); ok {
			r.Hourly[t.In(loc).Hour()]++
		}
	}
	return r
}

func apply(data record.Data, f Filter) ([]record.QueueItem, []record.HistoryItem) {
	want := strings.ToLower(strings.TrimSpace(f.CaseType))

	var queue []record.QueueItem
	for _, item := range data.Queue {
		if f.Range != nil && !f.Range.Contains(item.OpenedAt) {
			continue
		}
		if want != "" && strings.ToLower(item.CaseType) != want {
			continue
		}
		queue = append(queue, item)
	}

	var history []record.HistoryItem
	for _, item := range data.History {
		if f.Range != nil && !f.Range.Contains(item.CompletedAt) {
			continue
		}
		if want != "" && strings.ToLower(item.CaseType) != want {
			continue
		}
		history = append(history, item)
	}
	return queue, history
}

func summarize(queue []record.QueueItem, history []record.HistoryItem, rng *Range) Summary {
	s := Summary{QueueLoad: len(queue)}

	var total, fastest, slowest time.Duration
	for _, item := range history {
		if record.IsAbort(item.CaseType) {
			s.Aborted++
			continue
		}
		d, ok := record.HandleTime(item.OpenedAt, item.CompletedAt)
		if !ok {
			continue
		}
		if s.Measured == 0 || d < fastest {
			fastest = d
		}
		if d > slowest {
			slowest = d
		}
		total += d
		s.Measured++
	}
	s.Completed = len(history) - s.Aborted

	if s.Measured > 0 {
		s.Average = *newHandleTime(total / time.Duration(s.Measured))
		s.Fastest = newHandleTime(fastest)
		s.Slowest = newHandleTime(slowest)
	} else {
		s.Average = *newHandleTime(0)
	}

	if rng != nil && s.Completed > 0 {
		if hours := rng.Hours(); hours > 0 {
			v := math.Round(float64(s.Completed)/hours*10) / 10
			s.Throughput = &v
		}
	}
	return s
}

func byType(queue []record.QueueItem, history []record.HistoryItem) []TypeCount {
	counts := make(map[string]*TypeCount)
	get := func(caseType string) *TypeCount {
		if caseType == "" {
			caseType = Unassigned
		}
		tc, ok := counts[caseType]
		if !ok {
			tc = &TypeCount{Type: caseType}
			counts[caseType] = tc
		}
		return tc
	}
	for _, item := range queue {
		get(item.CaseType).Queued++
	}
	for _, item := range history {
		get(item.CaseType).Completed++
	}

	out := make([]TypeCount, 0, len(counts))
	for _, tc := range counts {
		out = append(out, *tc)
	}
	col := collate.New(language.English, collate.IgnoreCase)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total() != out[j].Total() {
			return out[i].Total() > out[j].Total()
		}
		return col.CompareString(out[i].Type, out[j].Type) < 0
	})
	return out
}

func trend(history []record.HistoryItem, now time.Time, loc *time.Location) []DayCount {
	counts := make(map[string]int)
	for _, item := range history {
		if t, ok := record.ParseTime(item.CompletedAt); ok {
			counts[t.In(loc).Format(time.DateOnly)]++
		}
	}

	today := now.In(loc)
	days := make([]DayCount, 0, TrendDays)
	for i := TrendDays - 1; i >= 0; i-- {
		key := today.AddDate(0, 0, -i).Format(time.DateOnly)
		days = append(days, DayCount{Date: key, Count: counts[key]})
	}
	return days
}

// KnownTypes returns the catalog plus any case type present on an item,
// deduplicated and sorted.
func KnownTypes(data record.Data) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}
	for _, t := range data.CaseTypes {
		add(t)
	}
	for _, item := range data.Queue {
		add(item.CaseType)
	}
	for _, item := range data.History {
		add(item.CaseType)
	}
	collate.New(language.English, collate.IgnoreCase).SortStrings(out)
	return out
}

// FormatHandleTime renders d as 0s, Ns, Mm Ss or Hh Mm.
func FormatHandleTime(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	hours := int64(d / time.Hour)
	minutes := int64(d/time.Minute) % 60
	seconds := int64(d/time.Second) % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
