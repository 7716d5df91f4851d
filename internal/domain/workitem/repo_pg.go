package workitem

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahayak/sahayak/internal/platform/db"
)

type workItemRepoPG struct{ pool *pgxpool.Pool }

func NewWorkItemRepoPG(pool *pgxpool.Pool) WorkItemRepository {
	return &workItemRepoPG{pool: pool}
}

func (r *workItemRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const workItemCols = `id, category, subject_id, assignee_id, requested_by, kind, priority, status,
	description, reason, notes, scheduled_at, started_at, completed_at, cancelled_at,
	rejection_reason, duration_minutes, outcome, prescription_id, vitals_id, version, created_at, updated_at`

const priorityOrder = `CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC, scheduled_at ASC`

func scanWorkItem(row pgx.Row) (*WorkItem, error) {
	var w WorkItem
	var category, status string
	err := row.Scan(&w.ID, &category, &w.SubjectID, &w.AssigneeID, &w.RequestedBy, &w.Kind, &w.Priority, &status,
		&w.Description, &w.Reason, &w.Notes, &w.ScheduledAt, &w.StartedAt, &w.CompletedAt, &w.CancelledAt,
		&w.RejectionReason, &w.DurationMinutes, &w.Outcome, &w.PrescriptionID, &w.VitalsID, &w.Version,
		&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.Category = Category(category)
	w.Status = Status(status)
	return &w, nil
}

func (r *workItemRepoPG) Create(ctx context.Context, w *WorkItem) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO work_item (id, category, subject_id, assignee_id, requested_by, kind, priority, status,
			description, reason, notes, scheduled_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,1)
		RETURNING version, created_at, updated_at`,
		w.ID, string(w.Category), w.SubjectID, w.AssigneeID, w.RequestedBy, w.Kind, w.Priority, string(w.Status),
		w.Description, w.Reason, w.Notes, w.ScheduledAt,
	).Scan(&w.Version, &w.CreatedAt, &w.UpdatedAt)
	return db.Translate(err, string(w.Category), w.ID.String())
}

func (r *workItemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*WorkItem, error) {
	w, err := scanWorkItem(r.conn(ctx).QueryRow(ctx, `SELECT `+workItemCols+` FROM work_item WHERE id = $1`, id))
	if err != nil {
		return nil, db.Translate(err, "work item", id.String())
	}
	return w, nil
}

func (r *workItemRepoPG) Transition(ctx context.Context, w *WorkItem, from Status) (bool, error) {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE work_item SET status=$3, started_at=$4, completed_at=$5, cancelled_at=$6,
			rejection_reason=$7, duration_minutes=$8, outcome=$9, prescription_id=$10, vitals_id=$11,
			version=version+1, updated_at=$12
		WHERE id = $1 AND status = $2
		RETURNING version`,
		w.ID, string(from), string(w.Status), w.StartedAt, w.CompletedAt, w.CancelledAt,
		w.RejectionReason, w.DurationMinutes, w.Outcome, w.PrescriptionID, w.VitalsID, w.UpdatedAt,
	).Scan(&w.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, db.Translate(err, "work item", w.ID.String())
	}
	return true, nil
}

func buildWhere(f Filter) (string, []any) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.AssigneeID != nil {
		add("assignee_id = $%d", *f.AssigneeID)
	}
	if f.SubjectID != nil {
		add("subject_id = $%d", *f.SubjectID)
	}
	if f.ParticipantID != nil {
		args = append(args, *f.ParticipantID)
		n := len(args)
		where = append(where, fmt.Sprintf("(assignee_id = $%d OR requested_by = $%d)", n, n))
	}
	if f.Category != nil {
		add("category = $%d", string(*f.Category))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}
	if f.Kind != "" {
		add("kind = $%d", f.Kind)
	}
	if f.ScheduledFrom != nil {
		add("scheduled_at >= $%d", *f.ScheduledFrom)
	}
	if f.ScheduledTo != nil {
		add("scheduled_at <= $%d", *f.ScheduledTo)
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (r *workItemRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*WorkItem, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM work_item`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Translate(err, "work item", "")
	}

	n := len(args)
	args = append(args, limit, offset)
	items, err := r.query(ctx,
		fmt.Sprintf(`SELECT `+workItemCols+` FROM work_item%s ORDER BY `+priorityOrder+` LIMIT $%d OFFSET $%d`, where, n+1, n+2),
		args...)
	return items, total, err
}

func (r *workItemRepoPG) ListByAssignee(ctx context.Context, assigneeID uuid.UUID, category *Category) ([]*WorkItem, error) {
	where, args := buildWhere(Filter{AssigneeID: &assigneeID, Category: category})
	return r.query(ctx, `SELECT `+workItemCols+` FROM work_item`+where+` ORDER BY updated_at DESC`, args...)
}

func (r *workItemRepoPG) query(ctx context.Context, sql string, args ...any) ([]*WorkItem, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.Translate(err, "work item", "")
	}
	defer rows.Close()
	var items []*WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, db.Translate(err, "work item", "")
		}
		items = append(items, w)
	}
	return items, db.Translate(rows.Err(), "work item", "")
}
