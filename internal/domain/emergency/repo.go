package emergency

import (
	"context"

	"github.com/google/uuid"
)

type FacilityRepository interface {
	Create(ctx context.Context, f *Facility) error
	GetByID(ctx context.Context, id uuid.UUID) (*Facility, error)
	Update(ctx context.Context, f *Facility) error
	// ListActive returns active facilities of serviceType, or of every type
	// when serviceType is empty.
	ListActive(ctx context.Context, serviceType string) ([]*Facility, error)
	// Search matches term against name or address, ignoring case.
	Search(ctx context.Context, term string) ([]*Facility, error)
}

type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// ListByUser returns the user's requests, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Request, error)
	// ListAll returns every request, newest first.
	ListAll(ctx context.Context) ([]*Request, error)
	// UpdateStatus writes status, assignment, notes and completion time. It
	// applies only while the stored status still equals from and reports
	// whether it did.
	UpdateStatus(ctx context.Context, r *Request, from string) (bool, error)
}
