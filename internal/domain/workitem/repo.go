package workitem

import (
	"context"

	"github.com/google/uuid"
)

type WorkItemRepository interface {
	Create(ctx context.Context, w *WorkItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*WorkItem, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*WorkItem, int, error)
	// ListByAssignee returns every item of the assignee, optionally of one
	// category, for statistics.
	ListByAssignee(ctx context.Context, assigneeID uuid.UUID, category *Category) ([]*WorkItem, error)
	// Transition stores w's lifecycle fields only if the stored status is
	// still from. It bumps the version and reports false when no row matched.
	Transition(ctx context.Context, w *WorkItem, from Status) (bool, error)
}
