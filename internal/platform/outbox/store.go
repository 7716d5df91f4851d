package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists outbox messages. Enqueue joins the transaction carried by
// ctx, if any.
type Store interface {
	Enqueue(ctx context.Context, m *Message) error
	// Claim returns up to batch deliverable messages and hides them from
	// other claimers until the lease ends.
	Claim(ctx context.Context, batch int, now time.Time) ([]*Message, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkFailed records a failed attempt. The message becomes DEAD when
	// dead is set, otherwise RETRY at retryAt.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryAt time.Time, dead bool) error
}

// ClaimLease is how long a claimed message stays invisible to other relays.
const ClaimLease = time.Minute

// MemoryStore is a Store for tests and single-process development.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*Message
	order  []uuid.UUID
	leases map[uuid.UUID]time.Time
	fail   error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uuid.UUID]*Message), leases: make(map[uuid.UUID]time.Time)}
}

// FailEnqueue makes subsequent Enqueue calls return err. nil resets it.
func (s *MemoryStore) FailEnqueue(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *MemoryStore) Enqueue(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.AvailableAt.IsZero() {
		m.AvailableAt = m.CreatedAt
	}
	if m.Status == "" {
		m.Status = StatusReady
	}
	cp := *m
	if _, ok := s.byID[m.ID]; !ok {
		s.order = append(s.order, m.ID)
	}
	s.byID[m.ID] = &cp
	return nil
}

func (s *MemoryStore) Claim(_ context.Context, batch int, now time.Time) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Message
	for _, m := range s.byID {
		if m.Status != StatusReady && m.Status != StatusRetry {
			continue
		}
		if m.AvailableAt.After(now) || s.leases[m.ID].After(now) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > batch {
		out = out[:batch]
	}
	claimed := make([]*Message, len(out))
	for i, m := range out {
		s.leases[m.ID] = now.Add(ClaimLease)
		cp := *m
		claimed[i] = &cp
	}
	return claimed, nil
}

func (s *MemoryStore) MarkPublished(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return nil
	}
	m.Status = StatusPublished
	m.Attempts++
	m.PublishedAt = &at
	delete(s.leases, id)
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id uuid.UUID, reason string, retryAt time.Time, dead bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return nil
	}
	m.Attempts++
	m.LastError = &reason
	if dead {
		m.Status = StatusDead
	} else {
		m.Status = StatusRetry
		m.AvailableAt = retryAt
	}
	delete(s.leases, id)
	return nil
}

// Messages returns a snapshot in enqueue order.
func (s *MemoryStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}
