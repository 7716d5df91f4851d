package report

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/db"
)

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewReportRepoPG(pool *pgxpool.Pool) ReportRepository {
	return &reportRepoPG{pool: pool}
}

func (r *reportRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const reportCols = `id, patient_id, blob_key, url, file_name, content_type, size, hash, description, uploaded_by, uploaded_at, parsed`

func scanReport(row pgx.Row) (*Report, error) {
	var rp Report
	err := row.Scan(&rp.ID, &rp.PatientID, &rp.BlobKey, &rp.URL, &rp.FileName, &rp.ContentType,
		&rp.Size, &rp.Hash, &rp.Description, &rp.UploadedBy, &rp.UploadedAt, &rp.Parsed)
	if err != nil {
		return nil, err
	}
	return &rp, nil
}

func (r *reportRepoPG) Create(ctx context.Context, rp *Report) error {
	if rp.ID == uuid.Nil {
		rp.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_report (id, patient_id, blob_key, url, file_name, content_type, size, hash, description, uploaded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING uploaded_at`,
		rp.ID, rp.PatientID, rp.BlobKey, rp.URL, rp.FileName, rp.ContentType, rp.Size, rp.Hash, rp.Description, rp.UploadedBy,
	).Scan(&rp.UploadedAt)
	return db.Translate(err, "report", rp.ID.String())
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	rp, err := scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM medical_report WHERE id = $1`, id))
	if err != nil {
		return nil, db.Translate(err, "report", id.String())
	}
	return rp, nil
}

func (r *reportRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*Report, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+reportCols+` FROM medical_report WHERE patient_id = $1 ORDER BY uploaded_at DESC LIMIT $2`,
		patientID, limit)
	if err != nil {
		return nil, db.Translate(err, "report", "")
	}
	defer rows.Close()
	var out []*Report
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, db.Translate(err, "report", "")
		}
		out = append(out, rp)
	}
	return out, db.Translate(rows.Err(), "report", "")
}

func (r *reportRepoPG) SetParsed(ctx context.Context, id uuid.UUID, p *Parsed) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE medical_report SET parsed = $2 WHERE id = $1`, id, p)
	if err != nil {
		return db.Translate(err, "report", id.String())
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("report", id.String())
	}
	return nil
}

func (r *reportRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_report WHERE id = $1`, id)
	if err != nil {
		return db.Translate(err, "report", id.String())
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("report", id.String())
	}
	return nil
}
