package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sahayak/sahayak/internal/platform/metrics"
)

// Sink delivers one message. A returned error schedules a retry.
type Sink interface {
	Name() string
	Publish(ctx context.Context, m *Message) error
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) { r.interval = d }
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) { r.batch = n }
}

// WithMaxAttempts sets how many failed deliveries turn a message DEAD.
func WithMaxAttempts(n int) RelayOption {
	return func(r *Relay) { r.maxAttempts = n }
}

func WithClock(now func() time.Time) RelayOption {
	return func(r *Relay) { r.now = now }
}

type Relay struct {
	store       Store
	sink        Sink
	log         zerolog.Logger
	interval    time.Duration
	batch       int
	maxAttempts int
	now         func() time.Time
}

func NewRelay(store Store, sink Sink, logger zerolog.Logger, opts ...RelayOption) *Relay {
	r := &Relay{
		store:       store,
		sink:        sink,
		log:         logger.With().Str("component", "outbox").Str("sink", sink.Name()).Logger(),
		interval:    5 * time.Second,
		batch:       50,
		maxAttempts: 8,
		now:         time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info().Dur("interval", r.interval).Msg("outbox relay started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Error().Err(err).Msg("outbox poll failed")
		}
		select {
		case <-ctx.Done():
			r.log.Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Result counts what one poll did.
type Result struct {
	Published int
	Retried   int
	Dead      int
}

// RunOnce claims one batch and delivers it.
func (r *Relay) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	msgs, err := r.store.Claim(ctx, r.batch, r.now().UTC())
	if err != nil {
		return res, err
	}
	for _, m := range msgs {
		if err := r.deliver(ctx, m, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *Relay) deliver(ctx context.Context, m *Message, res *Result) error {
	log := r.log.With().Str("message_id", m.ID.String()).Str("topic", m.Topic).Logger()

	pubErr := r.sink.Publish(ctx, m)
	now := r.now().UTC()
	if pubErr == nil {
		res.Published++
		metrics.RecordOutboxDelivery(r.sink.Name(), "published")
		return r.store.MarkPublished(ctx, m.ID, now)
	}

	attempt := m.Attempts + 1
	if attempt >= r.maxAttempts {
		res.Dead++
		metrics.RecordOutboxDelivery(r.sink.Name(), "dead")
		log.Error().Err(pubErr).Int("attempts", attempt).Msg("outbox message dead")
		return r.store.MarkFailed(ctx, m.ID, pubErr.Error(), now, true)
	}

	res.Retried++
	metrics.RecordOutboxDelivery(r.sink.Name(), "retry")
	wait := Backoff(attempt)
	log.Warn().Err(pubErr).Int("attempts", attempt).Dur("retry_in", wait).Msg("outbox delivery failed")
	return r.store.MarkFailed(ctx, m.ID, pubErr.Error(), now.Add(wait), false)
}
