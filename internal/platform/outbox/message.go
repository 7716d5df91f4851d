// Package outbox stores events in the same transaction as the state change
// that produced them and relays them to a sink afterwards.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusReady     Status = "READY"
	StatusRetry     Status = "RETRY"
	StatusPublished Status = "PUBLISHED"
	StatusDead      Status = "DEAD"
)

type Message struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Topic       string          `db:"topic" json:"topic"`
	Key         string          `db:"key" json:"key"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Status      Status          `db:"status" json:"status"`
	Attempts    int             `db:"attempts" json:"attempts"`
	LastError   *string         `db:"last_error" json:"last_error,omitempty"`
	AvailableAt time.Time       `db:"available_at" json:"available_at"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	PublishedAt *time.Time      `db:"published_at" json:"published_at,omitempty"`
}

// NewMessage marshals payload into a READY message.
func NewMessage(topic, key string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return &Message{
		ID:      uuid.New(),
		Topic:   topic,
		Key:     key,
		Payload: raw,
		Status:  StatusReady,
	}, nil
}

// TransitionEvent is the payload of every workitem.<status> message.
type TransitionEvent struct {
	ID          uuid.UUID `json:"id"`
	Category    string    `json:"category"`
	Kind        string    `json:"kind"`
	SubjectID   uuid.UUID `json:"subject_id"`
	AssigneeID  uuid.UUID `json:"assignee_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	At          time.Time `json:"at"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Reason      string    `json:"reason,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Diagnosis   string    `json:"diagnosis,omitempty"`
	FollowUp    string    `json:"follow_up,omitempty"`
}

const (
	minBackoff = 2 * time.Second
	maxBackoff = 5 * time.Minute
)

// Backoff is the delay before retry number attempt (1-based): 2s doubling,
// capped at 5m.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := minBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
