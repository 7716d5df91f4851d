package report

import (
	"context"

	"github.com/google/uuid"
)

type ReportRepository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	// ListByPatient returns newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*Report, error)
	SetParsed(ctx context.Context, id uuid.UUID, p *Parsed) error
	Delete(ctx context.Context, id uuid.UUID) error
}
