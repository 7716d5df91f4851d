package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sahayak/sahayak/internal/platform/outbox"
)

type recordingSink struct {
	mu     sync.Mutex
	topics []string
}

func (*recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, m *outbox.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, m.Topic)
	return nil
}

func enqueue(t *testing.T, ctx context.Context, store outbox.Store, topic string) *outbox.Message {
	t.Helper()
	m, err := outbox.NewMessage(topic, "k", map[string]string{"topic": topic})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	if err := store.Enqueue(ctx, m); err != nil {
		t.Fatalf("enqueue %s: %v", topic, err)
	}
	return m
}

func TestOutbox_ClaimLeasesMessages(t *testing.T) {
	ctx := context.Background()
	store := outbox.NewPGStore(newSchemaPool(t, ctx, 4))

	first := enqueue(t, ctx, store, "workitem.pending")
	second := enqueue(t, ctx, store, "workitem.accepted")
	enqueue(t, ctx, store, "workitem.in_progress")

	now := time.Now().UTC()
	claimed, err := store.Claim(ctx, 10, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 3 {
		t.Fatalf("claimed %d, want 3", len(claimed))
	}
	if claimed[0].Topic != "workitem.pending" {
		t.Errorf("first claimed = %s, want oldest first", claimed[0].Topic)
	}

	again, err := store.Claim(ctx, 10, now)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("leased messages claimed again: %d", len(again))
	}

	if err := store.MarkPublished(ctx, first.ID, now); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if err := store.MarkFailed(ctx, second.ID, "sink down", now, false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// The retry is due at once; the third message waits for its lease.
	due, err := store.Claim(ctx, 10, now)
	if err != nil {
		t.Fatalf("claim retry: %v", err)
	}
	if len(due) != 1 || due[0].ID != second.ID {
		t.Fatalf("claimed %v, want only the retry", due)
	}
	if due[0].Status != outbox.StatusRetry || due[0].Attempts != 1 {
		t.Errorf("retry = %s/%d, want RETRY/1", due[0].Status, due[0].Attempts)
	}

	later, err := store.Claim(ctx, 10, now.Add(outbox.ClaimLease+time.Second))
	if err != nil {
		t.Fatalf("claim after lease: %v", err)
	}
	if len(later) != 2 {
		t.Errorf("claimed %d after lease expiry, want 2", len(later))
	}
}

func TestOutbox_RelayDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	store := outbox.NewPGStore(newSchemaPool(t, ctx, 4))
	for _, topic := range []string{"workitem.pending", "workitem.accepted", "emergency.pending"} {
		enqueue(t, ctx, store, topic)
	}

	sink := &recordingSink{}
	relay := outbox.NewRelay(store, sink, testLogger())
	res, err := relay.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if res.Published != 3 {
		t.Fatalf("published %d, want 3", res.Published)
	}
	want := []string{"workitem.pending", "workitem.accepted", "emergency.pending"}
	for i, topic := range want {
		if sink.topics[i] != topic {
			t.Errorf("topic[%d] = %s, want %s", i, sink.topics[i], topic)
		}
	}

	res, err = relay.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Published != 0 {
		t.Errorf("republished %d messages", res.Published)
	}
}
