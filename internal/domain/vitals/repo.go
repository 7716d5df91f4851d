package vitals

import (
	"context"

	"github.com/google/uuid"
)

type ReadingRepository interface {
	// Append stores r unless a reading with the same SourceWorkItemID
	// exists, in which case r.ID is set to the existing id and created is false.
	Append(ctx context.Context, r *Reading) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*Reading, error)
	ListBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]*Reading, error)
}
