package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahayak/sahayak/internal/platform/db"
)

type personRepoPG struct{ pool *pgxpool.Pool }

func NewPersonRepoPG(pool *pgxpool.Pool) PersonRepository {
	return &personRepoPG{pool: pool}
}

func (r *personRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const personCols = `id, role, name, phone, email, aadhaar_hash, age, gender, address,
	lat, lng, location_address, languages, available,
	license_number, specialization, experience_years, consultation_fee, rating,
	diseases, emergency_contact, availability_window, created_at, updated_at`

func (r *personRepoPG) scanPerson(row pgx.Row) (*Person, error) {
	var p Person
	var lat, lng *float64
	var locAddr *string
	err := row.Scan(&p.ID, &p.Role, &p.Name, &p.Phone, &p.Email, &p.AadhaarHash, &p.Age, &p.Gender, &p.Address,
		&lat, &lng, &locAddr, &p.Languages, &p.Available,
		&p.LicenseNumber, &p.Specialization, &p.ExperienceYears, &p.ConsultationFee, &p.Rating,
		&p.Diseases, &p.EmergencyContact, &p.AvailabilityWindow, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		p.Location = &Location{Lat: *lat, Lng: *lng}
		if locAddr != nil {
			p.Location.Address = *locAddr
		}
	}
	return &p, nil
}

func locationArgs(l *Location) (lat, lng, addr any) {
	if l == nil {
		return nil, nil, nil
	}
	return l.Lat, l.Lng, l.Address
}

func (r *personRepoPG) Create(ctx context.Context, p *Person) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Languages == nil {
		p.Languages = []string{}
	}
	if p.Diseases == nil {
		p.Diseases = []string{}
	}
	lat, lng, addr := locationArgs(p.Location)
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO person (id, role, name, phone, email, aadhaar_hash, age, gender, address,
			lat, lng, location_address, languages, available,
			license_number, specialization, experience_years, consultation_fee, rating,
			diseases, emergency_contact, availability_window)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		RETURNING created_at, updated_at`,
		p.ID, p.Role, p.Name, p.Phone, p.Email, p.AadhaarHash, p.Age, p.Gender, p.Address,
		lat, lng, addr, p.Languages, p.Available,
		p.LicenseNumber, p.Specialization, p.ExperienceYears, p.ConsultationFee, p.Rating,
		p.Diseases, p.EmergencyContact, p.AvailabilityWindow,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Translate(err, "person", p.ID.String())
}

func (r *personRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Person, error) {
	p, err := r.scanPerson(r.conn(ctx).QueryRow(ctx, `SELECT `+personCols+` FROM person WHERE id = $1`, id))
	if err != nil {
		return nil, db.Translate(err, "person", id.String())
	}
	return p, nil
}

func (r *personRepoPG) Update(ctx context.Context, p *Person) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE person SET name=$2, email=$3, age=$4, gender=$5, address=$6, languages=$7,
			specialization=$8, experience_years=$9, consultation_fee=$10, diseases=$11,
			emergency_contact=$12, availability_window=$13, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Email, p.Age, p.Gender, p.Address, p.Languages,
		p.Specialization, p.ExperienceYears, p.ConsultationFee, p.Diseases,
		p.EmergencyContact, p.AvailabilityWindow,
	).Scan(&p.UpdatedAt)
	return db.Translate(err, "person", p.ID.String())
}

func (r *personRepoPG) exec(ctx context.Context, id uuid.UUID, sql string, args ...any) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return db.Translate(err, "person", id.String())
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, "person", id.String())
	}
	return nil
}

func (r *personRepoPG) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return r.exec(ctx, id, `UPDATE person SET available=$2, updated_at=NOW() WHERE id = $1`, available)
}

func (r *personRepoPG) UpdateLocation(ctx context.Context, id uuid.UUID, loc Location) error {
	return r.exec(ctx, id, `UPDATE person SET lat=$2, lng=$3, location_address=$4, updated_at=NOW() WHERE id = $1`,
		loc.Lat, loc.Lng, loc.Address)
}

func (r *personRepoPG) ListByRole(ctx context.Context, role string, f ListFilter) ([]*Person, error) {
	where := []string{"role = $1"}
	args := []any{role}
	if f.AvailableOnly {
		where = append(where, "available")
	}
	if f.Specialization != "" {
		args = append(args, f.Specialization)
		where = append(where, fmt.Sprintf("lower(specialization) = lower($%d)", len(args)))
	}
	if f.Language != "" {
		args = append(args, f.Language)
		where = append(where, fmt.Sprintf("$%d = ANY(languages)", len(args)))
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+personCols+` FROM person WHERE `+strings.Join(where, " AND ")+` ORDER BY rating DESC NULLS LAST, name`,
		args...)
	if err != nil {
		return nil, db.Translate(err, "person", "")
	}
	defer rows.Close()

	var items []*Person
	for rows.Next() {
		p, err := r.scanPerson(rows)
		if err != nil {
			return nil, db.Translate(err, "person", "")
		}
		items = append(items, p)
	}
	return items, db.Translate(rows.Err(), "person", "")
}
