package vitals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/auth"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type Service struct {
	readings ReadingRepository
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(readings ReadingRepository, logger zerolog.Logger) *Service {
	return &Service{
		readings: readings,
		log:      logger.With().Str("component", "vitals").Logger(),
		now:      time.Now,
	}
}

// Append validates and stores rd. A second append for the same source work
// item returns the id of the first.
func (s *Service) Append(ctx context.Context, rd *Reading) (uuid.UUID, error) {
	if rd.SubjectID == uuid.Nil {
		return uuid.Nil, apperr.Validation("subject_id is required", nil)
	}
	if err := rd.Measurements.Validate(); err != nil {
		return uuid.Nil, err
	}
	rd.normalize()
	if rd.RecordedAt.IsZero() {
		rd.RecordedAt = s.now().UTC()
	}
	created, err := s.readings.Append(ctx, rd)
	if err != nil {
		return uuid.Nil, err
	}
	if !created {
		s.log.Debug().Str("reading_id", rd.ID.String()).Msg("vitals already recorded for work item")
	}
	return rd.ID, nil
}

// Record stores measurements entered directly by the caller. A patient
// records for themselves; a health worker may record for subjectID.
func (s *Service) Record(ctx context.Context, actor auth.Actor, subjectID uuid.UUID, m Measurements, at time.Time) (*Reading, error) {
	actorID, err := uuid.Parse(actor.ID)
	if err != nil {
		return nil, apperr.Forbidden("caller identity is not a person id")
	}
	rd := &Reading{RecordedByID: actorID, RecordedAt: at, Measurements: m}

	switch {
	case actor.HasRole(auth.RoleDoctor):
		rd.RecordedBy = RecordedByDoctor
	case actor.HasRole(auth.RoleASHA):
		rd.RecordedBy = RecordedByASHA
	default:
		rd.RecordedBy = RecordedBySelf
	}

	if rd.RecordedBy == RecordedBySelf || subjectID == uuid.Nil {
		if subjectID != uuid.Nil && subjectID != actorID && !actor.IsAdmin() {
			return nil, apperr.Forbidden("patients may only record their own vitals")
		}
		if subjectID == uuid.Nil {
			subjectID = actorID
		}
	}
	rd.SubjectID = subjectID

	if _, err := s.Append(ctx, rd); err != nil {
		return nil, err
	}
	return rd, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Reading, error) {
	return s.readings.GetByID(ctx, id)
}

// List returns the subject's readings, newest first.
func (s *Service) List(ctx context.Context, subjectID uuid.UUID, limit int) ([]*Reading, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.readings.ListBySubject(ctx, subjectID, limit)
}

// Latest returns the most recent reading, or nil when there is none.
func (s *Service) Latest(ctx context.Context, subjectID uuid.UUID) (*Reading, error) {
	items, err := s.readings.ListBySubject(ctx, subjectID, 1)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}
