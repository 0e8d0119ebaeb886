package store

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Op names the store operation that produced a change.
type Op string

const (
	OpCapture           Op = "capture"
	OpUpdateCaseType    Op = "update_case_type"
	OpMarkCompleted     Op = "mark_completed"
	OpRemoveQueueItem   Op = "remove_queue_item"
	OpRemoveHistoryItem Op = "remove_history_item"
	OpAddCaseType       Op = "add_case_type"
	OpRemoveCaseType    Op = "remove_case_type"
	OpRenameCaseType    Op = "rename_case_type"
	OpReorderCaseTypes  Op = "reorder_case_types"
	OpRestoreBackup     Op = "restore_backup"
	OpClearQueue        Op = "clear_queue"
	OpClearHistory      Op = "clear_history"
	OpResetAll          Op = "reset_all"
)

// Change describes one committed mutation.
type Change struct {
	Op   Op        `json:"op"`
	Keys []string  `json:"keys"`
	At   time.Time `json:"at"`
}

// broker fans changes out to subscribers without ever blocking the writer.
type broker struct {
	mu     sync.Mutex
	subs   map[uint64]chan Change
	next   uint64
	closed bool
	logger *zap.Logger
}

func newBroker(logger *zap.Logger) *broker {
	return &broker{
		subs:   make(map[uint64]chan Change),
		logger: logger,
	}
}

func (b *broker) subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

func (b *broker) publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- c:
		default:
			b.logger.Warn("dropping change for slow subscriber",
				zap.Uint64("subscriber", id), zap.String("op", string(c.Op)))
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// subscribers reports the number of live subscriptions.
func (b *broker) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
