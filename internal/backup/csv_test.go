package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/casetrack/internal/errors"
	"github.com/hpungsan/casetrack/internal/record"
)

func TestWriteQueueCSV(t *testing.T) {
	items := []record.QueueItem{
		{URL: "https://q/1", OpenedAt: "2024-01-01T10:00:00Z", CaseType: ""},
		{URL: "https://q/2?a=1,b=2", OpenedAt: "2024-01-01T11:00:00Z", CaseType: "Refund"},
	}

	var buf bytes.Buffer
	n, err := WriteQueueCSV(&buf, items, Range{}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t,
		"URL,Case Type,Opened\n"+
			"https://q/1,,2024-01-01 10:00:00\n"+
			"\"https://q/2?a=1,b=2\",Refund,2024-01-01 11:00:00\n",
		buf.String())
}

func TestWriteHistoryCSV_TimeTaken(t *testing.T) {
	items := []record.HistoryItem{
		{QueueItem: record.QueueItem{URL: "https://h/1", OpenedAt: "2024-01-01T09:00:00Z", CaseType: "Refund"}, CompletedAt: "2024-01-01T09:01:05Z"},
		{QueueItem: record.QueueItem{URL: "https://h/2", OpenedAt: "2024-01-01T09:00:00Z", CaseType: "Appeal"}, CompletedAt: "2024-01-01T10:15:00Z"},
		{QueueItem: record.QueueItem{URL: "https://h/3", OpenedAt: "", CaseType: "Appeal"}, CompletedAt: "2024-01-01T10:15:00Z"},
	}

	var buf bytes.Buffer
	_, err := WriteHistoryCSV(&buf, items, Range{}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t,
		"URL,Case Type,Opened,Completed,Time Taken\n"+
			"https://h/1,Refund,2024-01-01 09:00:00,2024-01-01 09:01:05,01:05\n"+
			"https://h/2,Appeal,2024-01-01 09:00:00,2024-01-01 10:15:00,75:00\n"+
			"https://h/3,Appeal,,2024-01-01 10:15:00,\n",
		buf.String())
}

func TestDisplayTimezone(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	rows := QueueRows([]record.QueueItem{{URL: "u", OpenedAt: "2024-01-01T00:00:00Z"}}, Range{}, loc)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-01-01 05:30:00", rows[0][2])
}

func TestRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC)
	rng := Range{Start: start, End: end}

	assert.True(t, rng.Contains("2024-01-01T00:00:00Z"), "start inclusive")
	assert.True(t, rng.Contains("2024-01-01T23:59:59Z"), "end inclusive")
	assert.False(t, rng.Contains("2024-01-02T00:00:00Z"))
	assert.False(t, rng.Contains("garbage"))
	assert.False(t, rng.Contains(""))

	assert.True(t, Range{}.Contains("garbage"), "open range keeps unparsable timestamps")
	assert.False(t, Range{}.Contains(""))
	assert.True(t, Range{Start: start}.Contains("2030-01-01T00:00:00Z"))
}

func TestHistoryRows_FallsBackToOpenedAt(t *testing.T) {
	items := []record.HistoryItem{
		{QueueItem: record.QueueItem{URL: "a", OpenedAt: "2024-01-01T05:00:00Z"}},
		{QueueItem: record.QueueItem{URL: "b", OpenedAt: "2023-12-31T05:00:00Z"}, CompletedAt: "2024-01-01T06:00:00Z"},
		{QueueItem: record.QueueItem{URL: "c", OpenedAt: "2024-01-01T05:00:00Z"}, CompletedAt: "2024-01-05T06:00:00Z"},
	}
	rng := Range{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	rows := HistoryRows(items, rng, time.UTC)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0][0])
	assert.Equal(t, "b", rows[1][0])
}

func TestExport_EmptyIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.csv")

	_, err := ExportQueue(path, nil, Range{}, time.UTC, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	assert.Contains(t, err.Error(), ErrNoData)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no file written")
}

func TestExportHistory_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.csv")
	res, err := ExportHistory(path, sampleData().History, Range{}, time.UTC, now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "https://h/1,Refund,2024-01-01 09:00:00,2024-01-01 09:01:05,01:05")
}
