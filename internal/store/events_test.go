package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/casetrack/internal/record"
)

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "channel closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func assertNoChange(t *testing.T, ch <-chan Change) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected change: %+v", c)
	default:
	}
}

func TestSubscribe_PublishesOnMutation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ch, cancel := s.Subscribe(8)
	defer cancel()

	_, _ = s.Capture(ctx, "https://x/1", "")
	c := receive(t, ch)
	assert.Equal(t, OpCapture, c.Op)
	assert.Equal(t, []string{record.KeyQueue}, c.Keys)
	assert.Equal(t, fixedNow, c.At)

	_, _ = s.UpdateCaseType(ctx, "https://x/1", "Refund")
	_ = receive(t, ch)

	_, _ = s.MarkCompleted(ctx, "https://x/1")
	c = receive(t, ch)
	assert.Equal(t, OpMarkCompleted, c.Op)
	assert.Equal(t, []string{record.KeyQueue, record.KeyHistory}, c.Keys)
}

func TestSubscribe_NoEventWhenNothingChanged(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ch, cancel := s.Subscribe(8)
	defer cancel()

	_, _ = s.RemoveQueueItem(ctx, "https://missing")
	_, _ = s.MarkCompleted(ctx, "https://missing")
	_, _ = s.AddCaseType(ctx, "Refund")
	_, _ = s.GetAll(ctx)

	assertNoChange(t, ch)
}

func TestSubscribe_RenameTouchesAllKeys(t *testing.T) {
	s, _ := newTestStore(t)
	ch, cancel := s.Subscribe(1)
	defer cancel()

	ok, err := s.RenameCaseType(context.Background(), "Refund", "Refunds")
	require.NoError(t, err)
	require.True(t, ok)

	c := receive(t, ch)
	assert.Equal(t, record.Keys, c.Keys)
}

func TestSubscribe_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ch, cancel := s.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_, _ = s.AddCaseType(ctx, "T"+string(rune('a'+i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer blocked on a full subscriber")
	}

	c := receive(t, ch)
	assert.Equal(t, OpAddCaseType, c.Op)
	assertNoChange(t, ch)
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	s, _ := newTestStore(t)

	ch, cancel := s.Subscribe(1)
	assert.Equal(t, 1, s.events.subscribers())
	cancel()
	cancel() // idempotent

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, s.events.subscribers())
}

func TestClose_ClosesSubscribers(t *testing.T) {
	s, _ := newTestStore(t)

	ch, cancel := s.Subscribe(1)
	s.Close()
	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	late, lateCancel := s.Subscribe(1)
	defer lateCancel()
	_, ok = <-late
	assert.False(t, ok, "subscribing after Close yields a closed channel")
}
