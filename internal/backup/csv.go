package backup

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/hpungsan/casetrack/internal/errors"
	"github.com/hpungsan/casetrack/internal/record"
)

// ErrNoData is the message for an export whose range selects nothing.
const ErrNoData = "no data found for the selected range"

var (
	queueHeader   = []string{"URL", "Case Type", "Opened"}
	historyHeader = []string{"URL", "Case Type", "Opened", "Completed", "Time Taken"}
)

// Range bounds an export. A zero Start or End is open-ended; both ends are inclusive.
type Range struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range selects everything.
func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether ts falls in the range. An empty timestamp never
// matches; an unparsable one matches only an open range.
func (r Range) Contains(ts string) bool {
	if ts == "" {
		return false
	}
	if r.IsZero() {
		return true
	}
	t, ok := record.ParseTime(ts)
	if !ok {
		return false
	}
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// QueueRows returns the CSV records (without header) for the queue items in rng.
func QueueRows(items []record.QueueItem, rng Range, loc *time.Location) [][]string {
	var rows [][]string
	for _, item := range items {
		if !rng.Contains(item.OpenedAt) {
			continue
		}
		rows = append(rows, []string{item.URL, item.CaseType, record.FormatDisplay(item.OpenedAt, loc)})
	}
	return rows
}

// HistoryRows returns the CSV records for history items whose completion
// (or, lacking one, opening) falls in rng.
func HistoryRows(items []record.HistoryItem, rng Range, loc *time.Location) [][]string {
	var rows [][]string
	for _, item := range items {
		ts := item.CompletedAt
		if ts == "" {
			ts = item.OpenedAt
		}
		if !rng.Contains(ts) {
			continue
		}
		rows = append(rows, []string{
			item.URL,
			item.CaseType,
			record.FormatDisplay(item.OpenedAt, loc),
			record.FormatDisplay(item.CompletedAt, loc),
			record.FormatMinSec(item.OpenedAt, item.CompletedAt),
		})
	}
	return rows
}

// WriteQueueCSV writes the queue export to w.
func WriteQueueCSV(w io.Writer, items []record.QueueItem, rng Range, loc *time.Location) (int, error) {
	return writeCSV(w, queueHeader, QueueRows(items, rng, loc))
}

// WriteHistoryCSV writes the history export to w.
func WriteHistoryCSV(w io.Writer, items []record.HistoryItem, rng Range, loc *time.Location) (int, error) {
	return writeCSV(w, historyHeader, HistoryRows(items, rng, loc))
}

// ExportQueue atomically writes the queue export to path.
func ExportQueue(path string, items []record.QueueItem, rng Range, loc *time.Location, now time.Time) (*Result, error) {
	return exportFile(path, queueHeader, QueueRows(items, rng, loc), now)
}

// ExportHistory atomically writes the history export to path.
func ExportHistory(path string, items []record.HistoryItem, rng Range, loc *time.Location, now time.Time) (*Result, error) {
	return exportFile(path, historyHeader, HistoryRows(items, rng, loc), now)
}

func exportFile(path string, header []string, rows [][]string, now time.Time) (*Result, error) {
	if len(rows) == 0 {
		return nil, errors.NewInvalidRequest(ErrNoData)
	}
	err := writeAtomic(path, func(w io.Writer) error {
		_, err := writeCSV(w, header, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Result{Path: path, Count: len(rows), ExportedAt: record.FormatISO(now)}, nil
}

func writeCSV(w io.Writer, header []string, rows [][]string) (int, error) {
	if len(rows) == 0 {
		return 0, errors.NewInvalidRequest(ErrNoData)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return 0, errors.NewInternal(err)
	}
	return len(rows), nil
}
