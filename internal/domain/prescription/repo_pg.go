package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahayak/sahayak/internal/platform/db"
)

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const prescriptionCols = `id, work_item_id, doctor_id, patient_id, diagnosis, medications, follow_up_date, notes, created_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.WorkItemID, &p.DoctorID, &p.PatientID, &p.Diagnosis, &p.Medications,
		&p.FollowUpDate, &p.Notes, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription (id, work_item_id, doctor_id, patient_id, diagnosis, medications, follow_up_date, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (work_item_id) DO NOTHING
		RETURNING created_at`,
		p.ID, p.WorkItemID, p.DoctorID, p.PatientID, p.Diagnosis, p.Medications, p.FollowUpDate, p.Notes,
	).Scan(&p.CreatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, db.Translate(err, "prescription", p.ID.String())
	}
	err = r.conn(ctx).QueryRow(ctx,
		`SELECT id, created_at FROM prescription WHERE work_item_id = $1`, p.WorkItemID,
	).Scan(&p.ID, &p.CreatedAt)
	return false, db.Translate(err, "prescription", p.WorkItemID.String())
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+prescriptionCols+` FROM prescription WHERE id = $1`, id))
	if err != nil {
		return nil, db.Translate(err, "prescription", id.String())
	}
	return p, nil
}

func (r *prescriptionRepoPG) GetByWorkItem(ctx context.Context, workItemID uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+prescriptionCols+` FROM prescription WHERE work_item_id = $1`, workItemID))
	if err != nil {
		return nil, db.Translate(err, "prescription", workItemID.String())
	}
	return p, nil
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.listBy(ctx, "patient_id", patientID, limit, offset)
}

func (r *prescriptionRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.listBy(ctx, "doctor_id", doctorID, limit, offset)
}

// listBy is only called with a fixed column name.
func (r *prescriptionRepoPG) listBy(ctx context.Context, column string, id uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescription WHERE `+column+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, db.Translate(err, "prescription", "")
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+prescriptionCols+` FROM prescription WHERE `+column+` = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		id, limit, offset)
	if err != nil {
		return nil, 0, db.Translate(err, "prescription", "")
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, db.Translate(err, "prescription", "")
		}
		items = append(items, p)
	}
	return items, total, db.Translate(rows.Err(), "prescription", "")
}
