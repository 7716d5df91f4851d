package vitals

import (
	"time"

	"github.com/google/uuid"

	"github.com/sahayak/sahayak/internal/platform/apperr"
)

const (
	RecordedBySelf   = "self"
	RecordedByASHA   = "asha"
	RecordedByDoctor = "doctor"
)

const (
	UnitMgDL   = "mg/dL"
	UnitMmolL  = "mmol/L"
	mmolToMgDL = 18.0
)

type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

type BloodSugar struct {
	Value   float64 `json:"value"`
	Fasting bool    `json:"fasting"`
	Unit    string  `json:"unit"`
}

// MgDL returns the value in mg/dL regardless of the recorded unit.
func (b BloodSugar) MgDL() float64 {
	if b.Unit == UnitMmolL {
		return b.Value * mmolToMgDL
	}
	return b.Value
}

// Measurements is one set of observations. Every field is optional but at
// least one must be present.
type Measurements struct {
	BloodPressure *BloodPressure `json:"blood_pressure,omitempty"`
	BloodSugar    *BloodSugar    `json:"blood_sugar,omitempty"`
	WeightKg      *float64       `json:"weight_kg,omitempty"`
	HeightCm      *float64       `json:"height_cm,omitempty"`
	TemperatureF  *float64       `json:"temperature_f,omitempty"`
	HeartRate     *int           `json:"heart_rate,omitempty"`
	Symptoms      []string       `json:"symptoms,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
}

func (m Measurements) HasAny() bool {
	return m.BloodPressure != nil || m.BloodSugar != nil || m.WeightKg != nil ||
		m.HeightCm != nil || m.TemperatureF != nil || m.HeartRate != nil
}

func outside(v, lo, hi float64) bool { return v < lo || v > hi }

// Validate checks every present measurement against its plausible range.
func (m Measurements) Validate() error {
	if !m.HasAny() {
		return apperr.Validation("at least one vital measurement is required", nil)
	}
	details := map[string]string{}
	if bp := m.BloodPressure; bp != nil {
		switch {
		case outside(float64(bp.Systolic), 50, 300):
			details["blood_pressure.systolic"] = "must be 50-300"
		case outside(float64(bp.Diastolic), 30, 200):
			details["blood_pressure.diastolic"] = "must be 30-200"
		case bp.Systolic <= bp.Diastolic:
			details["blood_pressure"] = "systolic must be greater than diastolic"
		}
	}
	if bs := m.BloodSugar; bs != nil {
		switch bs.Unit {
		case "", UnitMgDL:
			if outside(bs.Value, 20, 500) {
				details["blood_sugar.value"] = "must be 20-500 mg/dL"
			}
		case UnitMmolL:
			if outside(bs.Value, 1.1, 27.8) {
				details["blood_sugar.value"] = "must be 1.1-27.8 mmol/L"
			}
		default:
			details["blood_sugar.unit"] = "must be mg/dL or mmol/L"
		}
	}
	if m.WeightKg != nil && outside(*m.WeightKg, 10, 300) {
		details["weight_kg"] = "must be 10-300"
	}
	if m.HeightCm != nil && outside(*m.HeightCm, 50, 250) {
		details["height_cm"] = "must be 50-250"
	}
	if m.HeartRate != nil && outside(float64(*m.HeartRate), 30, 200) {
		details["heart_rate"] = "must be 30-200"
	}
	if m.TemperatureF != nil && outside(*m.TemperatureF, 95, 110) {
		details["temperature_f"] = "must be 95-110"
	}
	if len(details) > 0 {
		return apperr.Validation("vital signs out of range", details)
	}
	return nil
}

// normalize fills the default sugar unit.
func (m *Measurements) normalize() {
	if m.BloodSugar != nil && m.BloodSugar.Unit == "" {
		m.BloodSugar.Unit = UnitMgDL
	}
}

// Reading is an immutable vitals entry. SourceWorkItemID is set when the
// reading was captured by completing a task or consultation.
type Reading struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	SubjectID        uuid.UUID  `db:"subject_id" json:"subject_id"`
	RecordedBy       string     `db:"recorded_by" json:"recorded_by"`
	RecordedByID     uuid.UUID  `db:"recorded_by_id" json:"recorded_by_id"`
	SourceWorkItemID *uuid.UUID `db:"source_work_item_id" json:"source_work_item_id,omitempty"`
	RecordedAt       time.Time  `db:"recorded_at" json:"recorded_at"`
	Measurements
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
