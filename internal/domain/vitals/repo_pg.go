package vitals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahayak/sahayak/internal/platform/db"
)

type readingRepoPG struct{ pool *pgxpool.Pool }

func NewReadingRepoPG(pool *pgxpool.Pool) ReadingRepository {
	return &readingRepoPG{pool: pool}
}

func (r *readingRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const readingCols = `id, subject_id, recorded_by, recorded_by_id, source_work_item_id, recorded_at,
	bp_systolic, bp_diastolic, sugar_value, sugar_fasting, sugar_unit,
	weight_kg, height_cm, temperature_f, heart_rate, symptoms, notes, created_at`

func scanReading(row pgx.Row) (*Reading, error) {
	var rd Reading
	var sys, dia *int
	var sugar *float64
	var fasting *bool
	var unit *string
	err := row.Scan(&rd.ID, &rd.SubjectID, &rd.RecordedBy, &rd.RecordedByID, &rd.SourceWorkItemID, &rd.RecordedAt,
		&sys, &dia, &sugar, &fasting, &unit,
		&rd.WeightKg, &rd.HeightCm, &rd.TemperatureF, &rd.HeartRate, &rd.Symptoms, &rd.Notes, &rd.CreatedAt)
	if err != nil {
		return nil, err
	}
	if sys != nil && dia != nil {
		rd.BloodPressure = &BloodPressure{Systolic: *sys, Diastolic: *dia}
	}
	if sugar != nil {
		rd.BloodSugar = &BloodSugar{Value: *sugar, Unit: UnitMgDL}
		if fasting != nil {
			rd.BloodSugar.Fasting = *fasting
		}
		if unit != nil {
			rd.BloodSugar.Unit = *unit
		}
	}
	return &rd, nil
}

func (r *readingRepoPG) Append(ctx context.Context, rd *Reading) (bool, error) {
	if rd.ID == uuid.Nil {
		rd.ID = uuid.New()
	}
	if rd.Symptoms == nil {
		rd.Symptoms = []string{}
	}
	var sys, dia any
	if bp := rd.BloodPressure; bp != nil {
		sys, dia = bp.Systolic, bp.Diastolic
	}
	var sugar, fasting, unit any
	if bs := rd.BloodSugar; bs != nil {
		sugar, fasting, unit = bs.Value, bs.Fasting, bs.Unit
	}

	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vitals_reading (id, subject_id, recorded_by, recorded_by_id, source_work_item_id, recorded_at,
			bp_systolic, bp_diastolic, sugar_value, sugar_fasting, sugar_unit,
			weight_kg, height_cm, temperature_f, heart_rate, symptoms, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (source_work_item_id) DO NOTHING
		RETURNING created_at`,
		rd.ID, rd.SubjectID, rd.RecordedBy, rd.RecordedByID, rd.SourceWorkItemID, rd.RecordedAt,
		sys, dia, sugar, fasting, unit,
		rd.WeightKg, rd.HeightCm, rd.TemperatureF, rd.HeartRate, rd.Symptoms, rd.Notes,
	).Scan(&rd.CreatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || rd.SourceWorkItemID == nil {
		return false, db.Translate(err, "vitals reading", rd.ID.String())
	}

	// The work item already produced a reading.
	err = r.conn(ctx).QueryRow(ctx,
		`SELECT id, created_at FROM vitals_reading WHERE source_work_item_id = $1`, *rd.SourceWorkItemID,
	).Scan(&rd.ID, &rd.CreatedAt)
	return false, db.Translate(err, "vitals reading", rd.SourceWorkItemID.String())
}

func (r *readingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Reading, error) {
	rd, err := scanReading(r.conn(ctx).QueryRow(ctx, `SELECT `+readingCols+` FROM vitals_reading WHERE id = $1`, id))
	if err != nil {
		return nil, db.Translate(err, "vitals reading", id.String())
	}
	return rd, nil
}

func (r *readingRepoPG) ListBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]*Reading, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+readingCols+` FROM vitals_reading
		WHERE subject_id = $1
		ORDER BY recorded_at DESC, created_at DESC
		LIMIT $2`, subjectID, limit)
	if err != nil {
		return nil, db.Translate(err, "vitals reading", "")
	}
	defer rows.Close()

	var items []*Reading
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, db.Translate(err, "vitals reading", "")
		}
		items = append(items, rd)
	}
	return items, db.Translate(rows.Err(), "vitals reading", "")
}
