package prescription

import (
	"context"

	"github.com/google/uuid"
)

type PrescriptionRepository interface {
	// Create inserts p unless the work item already has a prescription, in
	// which case p.ID is set to the existing one and created is false.
	Create(ctx context.Context, p *Prescription) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetByWorkItem(ctx context.Context, workItemID uuid.UUID) (*Prescription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
}
