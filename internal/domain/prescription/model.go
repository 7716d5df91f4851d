package prescription

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sahayak/sahayak/internal/platform/apperr"
)

type Medication struct {
	Name         string  `json:"name"`
	Dosage       string  `json:"dosage"`
	Frequency    string  `json:"frequency"`
	Duration     string  `json:"duration"`
	Instructions *string `json:"instructions,omitempty"`
}

// Prescription is written once, when a consultation completes, and is keyed
// by the work item that produced it.
type Prescription struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	WorkItemID   uuid.UUID    `db:"work_item_id" json:"work_item_id"`
	DoctorID     uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	PatientID    uuid.UUID    `db:"patient_id" json:"patient_id"`
	Diagnosis    string       `db:"diagnosis" json:"diagnosis"`
	Medications  []Medication `db:"medications" json:"medications"`
	FollowUpDate *time.Time   `db:"follow_up_date" json:"follow_up_date,omitempty"`
	Notes        *string      `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// ValidateMedications requires at least one entry with every field filled.
func ValidateMedications(meds []Medication) map[string]string {
	details := map[string]string{}
	if len(meds) == 0 {
		details["medications"] = "at least one medication is required"
		return details
	}
	for i, m := range meds {
		for field, v := range map[string]string{
			"name": m.Name, "dosage": m.Dosage, "frequency": m.Frequency, "duration": m.Duration,
		} {
			if strings.TrimSpace(v) == "" {
				details[fmt.Sprintf("medications[%d].%s", i, field)] = "is required"
			}
		}
	}
	return details
}

func (p *Prescription) Validate() error {
	details := ValidateMedications(p.Medications)
	if strings.TrimSpace(p.Diagnosis) == "" {
		details["diagnosis"] = "is required"
	}
	if p.WorkItemID == uuid.Nil {
		details["work_item_id"] = "is required"
	}
	if p.DoctorID == uuid.Nil || p.PatientID == uuid.Nil {
		details["participants"] = "doctor_id and patient_id are required"
	}
	if len(details) > 0 {
		return apperr.Validation("invalid prescription", details)
	}
	return nil
}
