// Package store is the Case Store: the single owner of the queue, history and
// case-type catalog. Every read and write of the persisted collections goes
// through a Store.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/casetrack/internal/db"
	"github.com/hpungsan/casetrack/internal/record"
)

// Store serializes all operations over the three collections.
//
// Domain failures (target absent, precondition not met) are reported as a
// false result with a nil error. A non-nil error means storage failed.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
	events *broker
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for openedAt/completedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store over an initialized database (see db.Init).
func New(database *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     database,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = newBroker(s.logger)
	return s
}

// Close closes every subscription channel. The database is owned by the caller.
func (s *Store) Close() {
	s.events.close()
}

// Subscribe registers for change notifications. buffer is the channel capacity;
// events are dropped for a subscriber whose buffer is full.
// Call cancel to unsubscribe; it closes the channel.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	return s.events.subscribe(buffer)
}

// Capture queues url unless it already exists in the queue or history.
// An empty openedAt is stamped with the current time.
func (s *Store) Capture(ctx context.Context, url, openedAt string) (bool, error) {
	if blank(url) {
		return false, nil
	}

	return s.mutate(ctx, OpCapture, func(st *state) bool {
		if st.queueIndex(url) >= 0 || st.historyIndex(url) >= 0 {
			return false
		}
		now := s.now()
		if blank(openedAt) {
			openedAt = record.FormatISO(now)
		}
		st.queue = append(st.queue, record.QueueItem{
			ID:       newID(now),
			URL:      url,
			OpenedAt: openedAt,
			CaseType: "",
		})
		st.touch(record.KeyQueue)
		return true
	})
}

// UpdateCaseType sets the case type of the item with url, looking in the
// queue first and then in history.
func (s *Store) UpdateCaseType(ctx context.Context, url, caseType string) (bool, error) {
	if blank(url) {
		return false, nil
	}

	return s.mutate(ctx, OpUpdateCaseType, func(st *state) bool {
		if i := st.queueIndex(url); i >= 0 {
			st.queue[i].CaseType = caseType
			st.touch(record.KeyQueue)
			return true
		}
		if i := st.historyIndex(url); i >= 0 {
			st.history[i].CaseType = caseType
			st.touch(record.KeyHistory)
			return true
		}
		return false
	})
}

// MarkCompleted moves a queue item with a non-blank case type to history.
func (s *Store) MarkCompleted(ctx context.Context, url string) (bool, error) {
	if blank(url) {
		return false, nil
	}

	return s.mutate(ctx, OpMarkCompleted, func(st *state) bool {
		i := st.queueIndex(url)
		if i < 0 {
			return false
		}
		item := st.queue[i]
		if blank(item.CaseType) {
			return false
		}
		st.queue = append(st.queue[:i], st.queue[i+1:]...)
		st.history = append(st.history, record.HistoryItem{
			QueueItem:   item,
			CompletedAt: record.FormatISO(s.now()),
		})
		st.touch(record.KeyQueue, record.KeyHistory)
		return true
	})
}

// RemoveQueueItem deletes every queue item with url.
func (s *Store) RemoveQueueItem(ctx context.Context, url string) (bool, error) {
	return s.mutate(ctx, OpRemoveQueueItem, func(st *state) bool {
		next := st.queue[:0]
		for _, item := range st.queue {
			if item.URL != url {
				next = append(next, item)
			}
		}
		if len(next) == len(st.queue) {
			return false
		}
		st.queue = next
		st.touch(record.KeyQueue)
		return true
	})
}

// RemoveHistoryItem deletes history items matching both url and openedAt.
func (s *Store) RemoveHistoryItem(ctx context.Context, url, openedAt string) (bool, error) {
	return s.mutate(ctx, OpRemoveHistoryItem, func(st *state) bool {
		next := st.history[:0]
		for _, item := range st.history {
			if !(item.URL == url && item.OpenedAt == openedAt) {
				next = append(next, item)
			}
		}
		if len(next) == len(st.history) {
			return false
		}
		st.history = next
		st.touch(record.KeyHistory)
		return true
	})
}

// AddCaseType appends name to the catalog, rejecting blanks and duplicates.
func (s *Store) AddCaseType(ctx context.Context, name string) (bool, error) {
	if blank(name) {
		return false, nil
	}

	return s.mutate(ctx, OpAddCaseType, func(st *state) bool {
		if st.typeIndex(name) >= 0 {
			return false
		}
		st.caseTypes = append(st.caseTypes, name)
		st.touch(record.KeyCaseTypes)
		return true
	})
}

// RemoveCaseType deletes name from the catalog. Items labelled with it keep
// their label.
func (s *Store) RemoveCaseType(ctx context.Context, name string) (bool, error) {
	return s.mutate(ctx, OpRemoveCaseType, func(st *state) bool {
		next := st.caseTypes[:0]
		for _, t := range st.caseTypes {
			if t != name {
				next = append(next, t)
			}
		}
		if len(next) == len(st.caseTypes) {
			return false
		}
		st.caseTypes = next
		st.touch(record.KeyCaseTypes)
		return true
	})
}

// RenameCaseType renames a catalog entry in place and relabels every queue
// and history item that carried the old name, in one transaction.
func (s *Store) RenameCaseType(ctx context.Context, oldName, newName string) (bool, error) {
	if blank(oldName) || blank(newName) {
		return false, nil
	}

	return s.mutate(ctx, OpRenameCaseType, func(st *state) bool {
		idx := st.typeIndex(oldName)
		if idx < 0 || st.typeIndex(newName) >= 0 {
			return false
		}
		st.caseTypes[idx] = newName
		for i := range st.queue {
			if st.queue[i].CaseType == oldName {
				st.queue[i].CaseType = newName
			}
		}
		for i := range st.history {
			if st.history[i].CaseType == oldName {
				st.history[i].CaseType = newName
			}
		}
		st.touch(record.KeyCaseTypes, record.KeyQueue, record.KeyHistory)
		return true
	})
}

// ReorderCaseTypes replaces the catalog with order. The caller supplies a
// permutation; set equality is not checked. A nil order is rejected.
func (s *Store) ReorderCaseTypes(ctx context.Context, order []string) (bool, error) {
	if order == nil {
		return false, nil
	}
	next := make([]string, len(order))
	copy(next, order)

	return s.mutate(ctx, OpReorderCaseTypes, func(st *state) bool {
		st.caseTypes = next
		st.touch(record.KeyCaseTypes)
		return true
	})
}

// RestoreBackup replaces each collection present in r. Absent collections are untouched.
func (s *Store) RestoreBackup(ctx context.Context, r record.Restore) (bool, error) {
	return s.mutate(ctx, OpRestoreBackup, func(st *state) bool {
		if r.Queue != nil {
			st.queue = append([]record.QueueItem{}, (*r.Queue)...)
			st.touch(record.KeyQueue)
		}
		if r.History != nil {
			st.history = append([]record.HistoryItem{}, (*r.History)...)
			st.touch(record.KeyHistory)
		}
		if r.CaseTypes != nil {
			st.caseTypes = append([]string{}, (*r.CaseTypes)...)
			st.touch(record.KeyCaseTypes)
		}
		return true
	})
}

// ClearQueue empties the queue.
func (s *Store) ClearQueue(ctx context.Context) (bool, error) {
	return s.mutate(ctx, OpClearQueue, func(st *state) bool {
		st.queue = []record.QueueItem{}
		st.touch(record.KeyQueue)
		return true
	})
}

// ClearHistory empties history.
func (s *Store) ClearHistory(ctx context.Context) (bool, error) {
	return s.mutate(ctx, OpClearHistory, func(st *state) bool {
		st.history = []record.HistoryItem{}
		st.touch(record.KeyHistory)
		return true
	})
}

// ResetAll empties all three collections, including the catalog.
func (s *Store) ResetAll(ctx context.Context) (bool, error) {
	return s.mutate(ctx, OpResetAll, func(st *state) bool {
		st.queue = []record.QueueItem{}
		st.history = []record.HistoryItem{}
		st.caseTypes = []string{}
		st.touch(record.KeyQueue, record.KeyHistory, record.KeyCaseTypes)
		return true
	})
}

// GetAll returns a consistent snapshot of all three collections.
func (s *Store) GetAll(ctx context.Context) (record.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data record.Data
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		st, err := load(ctx, tx)
		if err != nil {
			return err
		}
		s.warnSkipped(st)
		data = record.Data{Queue: st.queue, History: st.history, CaseTypes: st.caseTypes}
		return nil
	})
	if err != nil {
		s.logger.Error("snapshot read failed", zap.Error(err))
		return record.Data{}, err
	}
	data.Normalize()
	return data, nil
}

// mutate loads the collections, applies fn, and persists every collection fn
// touched in a single transaction. A change event is published when anything
// was written.
func (s *Store) mutate(ctx context.Context, op Op, fn func(st *state) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ok   bool
		keys []string
	)
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		st, err := load(ctx, tx)
		if err != nil {
			return err
		}
		s.warnSkipped(st)
		ok = fn(st)
		keys = st.dirtyKeys()
		return st.flush(ctx, tx)
	})
	if err != nil {
		s.logger.Error("store operation failed", zap.String("op", string(op)), zap.Error(err))
		return false, err
	}

	if len(keys) > 0 {
		s.logger.Debug("store changed", zap.String("op", string(op)), zap.Strings("keys", keys))
		s.events.publish(Change{Op: op, Keys: keys, At: s.now()})
	}
	return ok, nil
}

// warnSkipped logs persisted elements that were dropped while loading.
func (s *Store) warnSkipped(st *state) {
	for _, k := range record.Keys {
		if n := st.skipped[k]; n > 0 {
			s.logger.Warn("skipped malformed elements", zap.String("key", k), zap.Int("count", n))
		}
	}
}

// blank reports whether s is empty after trimming. Keys are never trimmed;
// urls and type names match exactly as stored.
func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// newID generates a ULID for a captured case.
func newID(now time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return ""
	}
	return id.String()
}
