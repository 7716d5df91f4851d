package identity

import (
	"context"

	"github.com/google/uuid"
)

type PersonRepository interface {
	Create(ctx context.Context, p *Person) error
	GetByID(ctx context.Context, id uuid.UUID) (*Person, error)
	Update(ctx context.Context, p *Person) error
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	UpdateLocation(ctx context.Context, id uuid.UUID, loc Location) error
	ListByRole(ctx context.Context, role string, f ListFilter) ([]*Person, error)
}
