package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu    sync.Mutex
	got   []string
	fails int
}

func (*recordingSink) Name() string { return "test" }

func (s *recordingSink) Publish(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("broker unavailable")
	}
	s.got = append(s.got, m.Topic)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func enqueue(t *testing.T, s *MemoryStore, topic string, at time.Time) {
	t.Helper()
	m, err := NewMessage(topic, "k", map[string]string{})
	require.NoError(t, err)
	m.CreatedAt = at
	require.NoError(t, s.Enqueue(context.Background(), m))
}

func TestRelay_PublishesInOrder(t *testing.T) {
	store := NewMemoryStore()
	clk := &clock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	enqueue(t, store, "workitem.accepted", clk.t.Add(-2*time.Second))
	enqueue(t, store, "workitem.in_progress", clk.t.Add(-time.Second))

	sink := &recordingSink{}
	relay := NewRelay(store, sink, zerolog.Nop(), WithClock(clk.now))

	res, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Published)
	assert.Equal(t, []string{"workitem.accepted", "workitem.in_progress"}, sink.got)

	for _, m := range store.Messages() {
		assert.Equal(t, StatusPublished, m.Status)
		assert.NotNil(t, m.PublishedAt)
	}

	res, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res, "published messages are not claimed again")
}

func TestRelay_RetryWithBackoff(t *testing.T) {
	store := NewMemoryStore()
	clk := &clock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	enqueue(t, store, "workitem.completed", clk.t)

	sink := &recordingSink{fails: 1}
	relay := NewRelay(store, sink, zerolog.Nop(), WithClock(clk.now))

	res, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)

	msg := store.Messages()[0]
	assert.Equal(t, StatusRetry, msg.Status)
	assert.Equal(t, 1, msg.Attempts)
	require.NotNil(t, msg.LastError)
	assert.Equal(t, "broker unavailable", *msg.LastError)
	assert.Equal(t, clk.t.Add(2*time.Second), msg.AvailableAt)

	clk.advance(time.Second)
	res, _ = relay.RunOnce(context.Background())
	assert.Equal(t, Result{}, res, "not yet due")

	clk.advance(time.Second)
	res, _ = relay.RunOnce(context.Background())
	assert.Equal(t, 1, res.Published)
	assert.Equal(t, StatusPublished, store.Messages()[0].Status)
}

func TestRelay_DeadAfterMaxAttempts(t *testing.T) {
	store := NewMemoryStore()
	clk := &clock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	enqueue(t, store, "workitem.rejected", clk.t)

	sink := &recordingSink{fails: 100}
	relay := NewRelay(store, sink, zerolog.Nop(), WithClock(clk.now), WithMaxAttempts(3))

	for i := 0; i < 3; i++ {
		_, err := relay.RunOnce(context.Background())
		require.NoError(t, err)
		clk.advance(10 * time.Minute)
	}

	msg := store.Messages()[0]
	assert.Equal(t, StatusDead, msg.Status)
	assert.Equal(t, 3, msg.Attempts)

	res, _ := relay.RunOnce(context.Background())
	assert.Equal(t, Result{}, res)
}

func TestMemoryStore_ClaimLease(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	enqueue(t, store, "a", now)

	first, err := store.Claim(context.Background(), 10, now)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, _ := store.Claim(context.Background(), 10, now.Add(time.Second))
	assert.Empty(t, second, "a claimed message is hidden during its lease")

	third, _ := store.Claim(context.Background(), 10, now.Add(ClaimLease+time.Second))
	assert.Len(t, third, 1, "an expired lease makes the message claimable again")
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore()
	relay := NewRelay(store, &recordingSink{}, zerolog.Nop(), WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
