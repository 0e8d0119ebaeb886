package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryItemJSONIsFlat(t *testing.T) {
	item := HistoryItem{
		QueueItem:   QueueItem{URL: "https://x/1", OpenedAt: "2024-01-01T00:00:00Z", CaseType: "Refund"},
		CompletedAt: "2024-01-01T00:05:00Z",
	}
	b, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://x/1","openedAt":"2024-01-01T00:00:00Z","caseType":"Refund","completedAt":"2024-01-01T00:05:00Z"}`, string(b))
}

func TestDataNormalize(t *testing.T) {
	var d Data
	d.Normalize()
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"queue":[],"history":[],"caseTypes":[]}`, string(b))
}

func TestDecodeQueue_Malformed(t *testing.T) {
	tests := map[string]string{
		"object":      `{"url":"x"}`,
		"string":      `"queue"`,
		"null":        `null`,
		"empty":       ``,
		"bad element": `[1,2,3]`,
		"truncated":   `[{"url":"x"`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			got, _ := DecodeQueue([]byte(raw))
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestDecodeHistory_KeepsValidElements(t *testing.T) {
	raw := `[{"url":"https://old/1","openedAt":"o","caseType":"Refund","completedAt":"c"},{"url":5}]`
	h, skipped := DecodeHistory([]byte(raw))
	require.Len(t, h, 1)
	assert.Equal(t, "https://old/1", h[0].URL)
	assert.Equal(t, 1, skipped)

	q, skipped := DecodeQueue([]byte(`[{"url":"https://x/1"},"junk",{"url":"https://x/2"}]`))
	require.Len(t, q, 2)
	assert.Equal(t, "https://x/2", q[1].URL)
	assert.Equal(t, 1, skipped)

	types, skipped := DecodeCaseTypes([]byte(`["A",5,"B"]`))
	assert.Equal(t, []string{"A", "B"}, types)
	assert.Equal(t, 1, skipped)
}

func TestDecodeHistoryAndTypes(t *testing.T) {
	h, _ := DecodeHistory([]byte(`[{"url":"a","openedAt":"o","caseType":"T","completedAt":"c"}]`))
	require.Len(t, h, 1)
	assert.Equal(t, "a", h[0].URL)
	assert.Equal(t, "c", h[0].CompletedAt)

	types, _ := DecodeCaseTypes([]byte(` ["A","B"]`))
	assert.Equal(t, []string{"A", "B"}, types)
	types, _ = DecodeCaseTypes([]byte(`{"A":1}`))
	assert.Empty(t, types)
}

func TestDecodeRestore_Partial(t *testing.T) {
	r, err := DecodeRestore([]byte(`{"queue":[{"url":"q","openedAt":"o","caseType":""}],"history":null,"caseTypes":"nope"}`))
	require.NoError(t, err)
	require.NotNil(t, r.Queue)
	assert.Len(t, *r.Queue, 1)
	assert.Nil(t, r.History)
	assert.Nil(t, r.CaseTypes)
	assert.False(t, r.Empty())
}

func TestDecodeRestore_EmptyArrays(t *testing.T) {
	r, err := DecodeRestore([]byte(`{"queue":[],"history":[],"caseTypes":[]}`))
	require.NoError(t, err)
	require.NotNil(t, r.Queue)
	require.NotNil(t, r.History)
	require.NotNil(t, r.CaseTypes)
	assert.Empty(t, *r.CaseTypes)
}

func TestDecodeRestore_Errors(t *testing.T) {
	_, err := DecodeRestore([]byte(`[1]`))
	assert.Error(t, err)

	_, err = DecodeRestore([]byte(`{"caseTypes":[1,2]}`))
	assert.Error(t, err)
}

func TestSeedCaseTypes(t *testing.T) {
	seed := SeedCaseTypes(nil)
	assert.Equal(t, DefaultCaseTypes, seed)
	seed[0] = "mutated"
	assert.Equal(t, "Other", DefaultCaseTypes[0], "seed must be a copy")

	assert.Equal(t, []string{"X"}, SeedCaseTypes([]string{"X"}))
}

func TestFormatISO(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", FormatISO(ts))
}

func TestFormatMinSec(t *testing.T) {
	tests := []struct {
		name      string
		opened    string
		completed string
		want      string
	}{
		{"simple", "2024-01-01T00:00:00.000Z", "2024-01-01T00:02:05.000Z", "02:05"},
		{"over an hour", "2024-01-01T00:00:00Z", "2024-01-01T01:30:09Z", "90:09"},
		{"sub-second truncates", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00.900Z", "00:00"},
		{"negative", "2024-01-01T00:10:00Z", "2024-01-01T00:00:00Z", ""},
		{"missing completed", "2024-01-01T00:00:00Z", "", ""},
		{"garbage", "yesterday", "2024-01-01T00:00:00Z", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMinSec(tt.opened, tt.completed))
		})
	}
}

func TestFormatDisplay(t *testing.T) {
	assert.Equal(t, "2024-01-01 00:00:00", FormatDisplay("2024-01-01T00:00:00.000Z", time.UTC))
	assert.Equal(t, "", FormatDisplay("", time.UTC))

	tokyo := time.FixedZone("JST", 9*3600)
	assert.Equal(t, "2024-01-01 09:00:00", FormatDisplay("2024-01-01T00:00:00Z", tokyo))
}

func TestIsAbort(t *testing.T) {
	assert.True(t, IsAbort("Abort-PIV"))
	assert.True(t, IsAbort("customer ABORTED"))
	assert.False(t, IsAbort("Refund"))
	assert.False(t, IsAbort(""))
}

func TestRestoreJSON_OmitsAbsentCollections(t *testing.T) {
	types := []string{}
	b, err := json.Marshal(Restore{CaseTypes: &types})
	require.NoError(t, err)
	assert.JSONEq(t, `{"caseTypes":[]}`, string(b))

	r, err := DecodeRestore(b)
	require.NoError(t, err)
	assert.Nil(t, r.Queue)
	require.NotNil(t, r.CaseTypes)
	assert.Empty(t, *r.CaseTypes)
}
