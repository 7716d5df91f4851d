package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahayak/sahayak/internal/platform/db"
)

type pgStore struct{ pool *pgxpool.Pool }

func NewPGStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, s.pool)
}

const messageCols = `id, topic, key, payload, status, attempts, last_error, available_at, created_at, published_at`

func (s *pgStore) Enqueue(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = StatusReady
	}
	err := s.conn(ctx).QueryRow(ctx, `
		INSERT INTO outbox_message (id, topic, key, payload, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING available_at, created_at`,
		m.ID, m.Topic, m.Key, []byte(m.Payload), string(m.Status),
	).Scan(&m.AvailableAt, &m.CreatedAt)
	return db.Translate(err, "outbox message", m.ID.String())
}

func (s *pgStore) Claim(ctx context.Context, batch int, now time.Time) ([]*Message, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		WITH claimed AS (
			UPDATE outbox_message SET available_at = $2::timestamptz + $3::interval
			WHERE id IN (
				SELECT id FROM outbox_message
				WHERE status IN ('READY', 'RETRY') AND available_at <= $2
				ORDER BY created_at
				LIMIT $1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING `+messageCols+`
		)
		SELECT `+messageCols+` FROM claimed ORDER BY created_at`,
		batch, now, fmt.Sprintf("%d seconds", int(ClaimLease.Seconds())))
	if err != nil {
		return nil, db.Translate(err, "outbox message", "")
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		var payload []byte
		var status string
		if err := rows.Scan(&m.ID, &m.Topic, &m.Key, &payload, &status, &m.Attempts, &m.LastError,
			&m.AvailableAt, &m.CreatedAt, &m.PublishedAt); err != nil {
			return nil, db.Translate(err, "outbox message", "")
		}
		m.Payload = payload
		m.Status = Status(status)
		out = append(out, &m)
	}
	return out, db.Translate(rows.Err(), "outbox message", "")
}

func (s *pgStore) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.conn(ctx).Exec(ctx, `
		UPDATE outbox_message SET status = 'PUBLISHED', attempts = attempts + 1, published_at = $2
		WHERE id = $1`, id, at)
	return db.Translate(err, "outbox message", id.String())
}

func (s *pgStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryAt time.Time, dead bool) error {
	status := StatusRetry
	if dead {
		status = StatusDead
	}
	_, err := s.conn(ctx).Exec(ctx, `
		UPDATE outbox_message SET status = $2, attempts = attempts + 1, last_error = $3, available_at = $4
		WHERE id = $1`, id, string(status), reason, retryAt)
	return db.Translate(err, "outbox message", id.String())
}
