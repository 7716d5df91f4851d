package prescription

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/auth"
	"github.com/sahayak/sahayak/pkg/pagination"
)

type Service struct {
	prescriptions PrescriptionRepository
	log           zerolog.Logger
}

func NewService(prescriptions PrescriptionRepository, logger zerolog.Logger) *Service {
	return &Service{prescriptions: prescriptions, log: logger.With().Str("component", "prescription").Logger()}
}

// Create stores p. Completing the same consultation again returns the
// prescription written the first time.
func (s *Service) Create(ctx context.Context, p *Prescription) (uuid.UUID, error) {
	if err := p.Validate(); err != nil {
		return uuid.Nil, err
	}
	created, err := s.prescriptions.Create(ctx, p)
	if err != nil {
		return uuid.Nil, err
	}
	if created {
		s.log.Info().
			Str("prescription_id", p.ID.String()).
			Str("work_item_id", p.WorkItemID.String()).
			Int("medications", len(p.Medications)).
			Msg("prescription created")
	}
	return p.ID, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

// GetFor returns the prescription if actor is its patient, its doctor, a
// health worker or an admin.
func (s *Service) GetFor(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || actor.HasRole(auth.RoleASHA) ||
		actor.ID == p.PatientID.String() || actor.ID == p.DoctorID.String() {
		return p, nil
	}
	return nil, apperr.Forbidden("not a participant of this prescription")
}

func (s *Service) GetByWorkItem(ctx context.Context, workItemID uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByWorkItem(ctx, workItemID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]*Prescription, int, error) {
	return s.prescriptions.ListByPatient(ctx, patientID, page.Limit, page.Offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, page pagination.Params) ([]*Prescription, int, error) {
	return s.prescriptions.ListByDoctor(ctx, doctorID, page.Limit, page.Offset)
}
