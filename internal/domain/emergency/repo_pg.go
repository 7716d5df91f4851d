package emergency

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahayak/sahayak/internal/platform/db"
)

type facilityRepoPG struct{ pool *pgxpool.Pool }

func NewFacilityRepoPG(pool *pgxpool.Pool) FacilityRepository {
	return &facilityRepoPG{pool: pool}
}

func (r *facilityRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const facilityCols = `id, name, type, lat, lng, address, phone, email, is_24_hours, services,
	rating, active, created_at, updated_at`

func scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility
	err := row.Scan(&f.ID, &f.Name, &f.Type, &f.Location.Lat, &f.Location.Lng, &f.Location.Address,
		&f.Phone, &f.Email, &f.Is24Hours, &f.Services, &f.Rating, &f.Active, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *facilityRepoPG) Create(ctx context.Context, f *Facility) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Services == nil {
		f.Services = []string{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO emergency_service (id, name, type, lat, lng, address, phone, email, is_24_hours,
			services, rating, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		f.ID, f.Name, f.Type, f.Location.Lat, f.Location.Lng, f.Location.Address, f.Phone, f.Email,
		f.Is24Hours, f.Services, f.Rating, f.Active,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	return db.Translate(err, "emergency service", f.ID.String())
}

func (r *facilityRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Facility, error) {
	f, err := scanFacility(r.conn(ctx).QueryRow(ctx,
		`SELECT `+facilityCols+` FROM emergency_service WHERE id = $1`, id))
	if err != nil {
		return nil, db.Translate(err, "emergency service", id.String())
	}
	return f, nil
}

func (r *facilityRepoPG) Update(ctx context.Context, f *Facility) error {
	if f.Services == nil {
		f.Services = []string{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE emergency_service SET name=$2, lat=$3, lng=$4, address=$5, phone=$6, email=$7,
			is_24_hours=$8, services=$9, rating=$10, active=$11, updated_at=now()
		WHERE id = $1
		RETURNING updated_at`,
		f.ID, f.Name, f.Location.Lat, f.Location.Lng, f.Location.Address, f.Phone, f.Email,
		f.Is24Hours, f.Services, f.Rating, f.Active,
	).Scan(&f.UpdatedAt)
	return db.Translate(err, "emergency service", f.ID.String())
}

func (r *facilityRepoPG) list(ctx context.Context, sql string, args ...any) ([]*Facility, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.Translate(err, "emergency service", "")
	}
	defer rows.Close()

	var items []*Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, db.Translate(err, "emergency service", "")
		}
		items = append(items, f)
	}
	return items, db.Translate(rows.Err(), "emergency service", "")
}

func (r *facilityRepoPG) ListActive(ctx context.Context, serviceType string) ([]*Facility, error) {
	return r.list(ctx, `
		SELECT `+facilityCols+` FROM emergency_service
		WHERE active AND ($1 = '' OR type = $1)
		ORDER BY name`, serviceType)
}

func (r *facilityRepoPG) Search(ctx context.Context, term string) ([]*Facility, error) {
	return r.list(ctx, `
		SELECT `+facilityCols+` FROM emergency_service
		WHERE active AND (name ILIKE '%' || $1 || '%' OR address ILIKE '%' || $1 || '%')
		ORDER BY name`, likeEscaper.Replace(term))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool}
}

func (r *requestRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const requestCols = `id, user_id, type, urgency, lat, lng, address, description, status,
	assigned_to, notes, created_at, updated_at, completed_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var q Request
	err := row.Scan(&q.ID, &q.UserID, &q.Type, &q.Urgency, &q.Location.Lat, &q.Location.Lng,
		&q.Location.Address, &q.Description, &q.Status, &q.AssignedTo, &q.Notes,
		&q.CreatedAt, &q.UpdatedAt, &q.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *requestRepoPG) Create(ctx context.Context, q *Request) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO emergency_request (id, user_id, type, urgency, lat, lng, address, description,
			status, assigned_to, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		q.ID, q.UserID, q.Type, q.Urgency, q.Location.Lat, q.Location.Lng, q.Location.Address,
		q.Description, q.Status, q.AssignedTo, q.Notes, q.CreatedAt, q.UpdatedAt)
	return db.Translate(err, "emergency request", q.ID.String())
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	q, err := scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM emergency_request WHERE id = $1`, id))
	if err != nil {
		return nil, db.Translate(err, "emergency request", id.String())
	}
	return q, nil
}

func (r *requestRepoPG) list(ctx context.Context, sql string, args ...any) ([]*Request, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.Translate(err, "emergency request", "")
	}
	defer rows.Close()

	var items []*Request
	for rows.Next() {
		q, err := scanRequest(rows)
		if err != nil {
			return nil, db.Translate(err, "emergency request", "")
		}
		items = append(items, q)
	}
	return items, db.Translate(rows.Err(), "emergency request", "")
}

func (r *requestRepoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Request, error) {
	return r.list(ctx, `SELECT `+requestCols+` FROM emergency_request
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *requestRepoPG) ListAll(ctx context.Context) ([]*Request, error) {
	return r.list(ctx, `SELECT `+requestCols+` FROM emergency_request ORDER BY created_at DESC`)
}

func (r *requestRepoPG) UpdateStatus(ctx context.Context, q *Request, from string) (bool, error) {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE emergency_request SET status=$3, assigned_to=$4, notes=$5, completed_at=$6, updated_at=$7
		WHERE id = $1 AND status = $2
		RETURNING id`,
		q.ID, from, q.Status, q.AssignedTo, q.Notes, q.CompletedAt, q.UpdatedAt,
	).Scan(&q.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, db.Translate(err, "emergency request", q.ID.String())
	}
	return true, nil
}
