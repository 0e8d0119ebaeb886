package store

import (
	"context"
	"database/sql"

	"github.com/hpungsan/casetrack/internal/db"
	"github.com/hpungsan/casetrack/internal/record"
)

// state is the in-transaction working copy of the three collections.
type state struct {
	queue     []record.QueueItem
	history   []record.HistoryItem
	caseTypes []string
	dirty     map[string]bool

	// skipped counts persisted elements per key that did not decode.
	skipped map[string]int
}

// load reads all collections. A value that is not an array reads as empty;
// elements that do not decode are skipped.
func load(ctx context.Context, tx *sql.Tx) (*state, error) {
	st := &state{dirty: make(map[string]bool), skipped: make(map[string]int)}

	raw, _, err := db.GetRaw(ctx, tx, record.KeyQueue)
	if err != nil {
		return nil, err
	}
	st.queue, st.skipped[record.KeyQueue] = record.DecodeQueue(raw)

	raw, _, err = db.GetRaw(ctx, tx, record.KeyHistory)
	if err != nil {
		return nil, err
	}
	st.history, st.skipped[record.KeyHistory] = record.DecodeHistory(raw)

	raw, _, err = db.GetRaw(ctx, tx, record.KeyCaseTypes)
	if err != nil {
		return nil, err
	}
	st.caseTypes, st.skipped[record.KeyCaseTypes] = record.DecodeCaseTypes(raw)

	return st, nil
}

func (st *state) touch(keys ...string) {
	for _, k := range keys {
		st.dirty[k] = true
	}
}

// dirtyKeys returns touched keys in record.Keys order.
func (st *state) dirtyKeys() []string {
	var keys []string
	for _, k := range record.Keys {
		if st.dirty[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// flush writes each touched collection once.
func (st *state) flush(ctx context.Context, tx *sql.Tx) error {
	for _, k := range st.dirtyKeys() {
		var v any
		switch k {
		case record.KeyQueue:
			v = st.queue
		case record.KeyHistory:
			v = st.history
		case record.KeyCaseTypes:
			v = st.caseTypes
		}
		if err := db.PutJSON(ctx, tx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (st *state) queueIndex(url string) int {
	for i, item := range st.queue {
		if item.URL == url {
			return i
		}
	}
	return -1
}

func (st *state) historyIndex(url string) int {
	for i, item := range st.history {
		if item.URL == url {
			return i
		}
	}
	return -1
}

func (st *state) typeIndex(name string) int {
	for i, t := range st.caseTypes {
		if t == name {
			return i
		}
	}
	return -1
}
