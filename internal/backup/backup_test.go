package backup

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/casetrack/internal/errors"
	"github.com/hpungsan/casetrack/internal/record"
)

var now = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func sampleData() record.Data {
	return record.Data{
		Queue: []record.QueueItem{
			{URL: "https://q/1", OpenedAt: "2024-01-01T10:00:00Z"},
		},
		History: []record.HistoryItem{
			{
				QueueItem:   record.QueueItem{URL: "https://h/1", OpenedAt: "2024-01-01T09:00:00Z", CaseType: "Refund"},
				CompletedAt: "2024-01-01T09:01:05Z",
			},
		},
		CaseTypes: []string{"Refund", "Appeal"},
	}
}

func TestDefaultFileName(t *testing.T) {
	assert.Equal(t, "Queue-2024-01-02_03-04-05.csv", DefaultFileName(KindQueue, now, time.UTC))
	assert.Equal(t, "History-2024-01-02_03-04-05.csv", DefaultFileName(KindHistory, now, time.UTC))
	assert.Equal(t, "CaseTracker-Backup-2024-01-02_03-04-05.json", DefaultFileName(KindBackup, now, time.UTC))
}

func TestEncode_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleData(), now))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.EqualValues(t, 1, doc["version"])
	assert.Equal(t, "2024-01-02T03:04:05.000Z", doc["exportedAt"])
	assert.Contains(t, doc, "data")
	assert.Contains(t, buf.String(), "\n  \"version\"", "pretty-printed")
}

func TestWriteAndReadBackup_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.json")

	res, err := WriteBackup(path, sampleData(), now)
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 2, res.Count)

	parsed, err := ReadBackupFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:05.000Z", parsed.ExportedAt)
	require.NotNil(t, parsed.Restore.Queue)
	require.NotNil(t, parsed.Restore.History)
	require.NotNil(t, parsed.Restore.CaseTypes)
	assert.Equal(t, sampleData().History, *parsed.Restore.History)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWriteBackup_NoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteBackup(filepath.Join(dir, "b.json"), sampleData(), now)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.json", entries[0].Name())
}

func TestReadBackup_MissingData(t *testing.T) {
	for _, in := range []string{
		`{"version":1}`,
		`{"version":1,"data":null}`,
		`{"version":1,"data":[1]}`,
	} {
		_, err := ReadBackup(strings.NewReader(in))
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
		assert.Contains(t, err.Error(), "invalid backup file format")
	}
}

func TestReadBackup_NoCollections(t *testing.T) {
	for _, in := range []string{
		`{"data":{}}`,
		`{"data":{"queue":"x","history":null}}`,
	} {
		_, err := ReadBackup(strings.NewReader(in))
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
		assert.Contains(t, err.Error(), "no queue, history or caseTypes")
	}
}

func TestReadBackup_InvalidJSON(t *testing.T) {
	_, err := ReadBackup(strings.NewReader(`{not json`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestReadBackup_PartialData(t *testing.T) {
	parsed, err := ReadBackup(strings.NewReader(`{"data":{"caseTypes":["A"],"queue":"x"}}`))
	require.NoError(t, err)
	assert.Nil(t, parsed.Restore.Queue)
	assert.Nil(t, parsed.Restore.History)
	require.NotNil(t, parsed.Restore.CaseTypes)
	assert.Equal(t, []string{"A"}, *parsed.Restore.CaseTypes)
}

func TestReadBackupFile_Missing(t *testing.T) {
	_, err := ReadBackupFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFileNotFound))
}

func TestWriteBackup_RefusesSymlinkDestination(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.json")
	require.NoError(t, os.WriteFile(target, []byte("keep"), 0600))
	link := filepath.Join(dir, "link.json")
	require.NoError(t, os.Symlink(target, link))

	_, err := WriteBackup(link, sampleData(), now)
	require.Error(t, err)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))
}
