package workitem

import (
	"strings"
	"time"

	"github.com/sahayak/sahayak/internal/domain/prescription"
	"github.com/sahayak/sahayak/internal/domain/vitals"
	"github.com/sahayak/sahayak/internal/platform/apperr"
)

// Outcome is what completing an item produces. The only implementations are
// *WorkerOutcome and *ConsultationOutcome.
type Outcome interface {
	category() Category
	validate(w *WorkItem) error
}

// WorkerOutcome closes an ASHA task.
type WorkerOutcome struct {
	Vitals *vitals.Measurements `json:"vitals,omitempty"`
	Notes  string               `json:"notes"`
}

func (*WorkerOutcome) category() Category { return CategoryTask }

func (o *WorkerOutcome) validate(w *WorkItem) error {
	if o.Vitals == nil {
		if w.Kind == KindVitalsCheck {
			return apperr.Validation("a vitals check must record vitals", map[string]string{"vitals": "is required"})
		}
		return nil
	}
	return o.Vitals.Validate()
}

// ConsultationOutcome closes a doctor consultation. Medications, when
// present, become a prescription.
type ConsultationOutcome struct {
	Diagnosis    string                    `json:"diagnosis"`
	Medications  []prescription.Medication `json:"medications,omitempty"`
	FollowUpDate *time.Time                `json:"follow_up_date,omitempty"`
	Notes        string                    `json:"notes"`
}

func (*ConsultationOutcome) category() Category { return CategoryConsultation }

func (o *ConsultationOutcome) validate(*WorkItem) error {
	details := map[string]string{}
	if strings.TrimSpace(o.Diagnosis) == "" {
		details["diagnosis"] = "is required"
	}
	if len(o.Medications) > 0 {
		for k, v := range prescription.ValidateMedications(o.Medications) {
			details[k] = v
		}
	}
	if len(details) > 0 {
		return apperr.Validation("invalid consultation outcome", details)
	}
	return nil
}

func (o *ConsultationOutcome) prescribes() bool {
	return strings.TrimSpace(o.Diagnosis) != "" && len(o.Medications) > 0
}

// OutcomeRecord is the stored and wire form of an Outcome. Exactly one arm
// is set, named by Type.
type OutcomeRecord struct {
	Type         Category             `json:"type"`
	Worker       *WorkerOutcome       `json:"worker,omitempty"`
	Consultation *ConsultationOutcome `json:"consultation,omitempty"`
}

func recordOf(o Outcome) *OutcomeRecord {
	switch v := o.(type) {
	case *WorkerOutcome:
		return &OutcomeRecord{Type: CategoryTask, Worker: v}
	case *ConsultationOutcome:
		return &OutcomeRecord{Type: CategoryConsultation, Consultation: v}
	}
	return nil
}

// Value returns the arm as an Outcome; nil for an empty record.
func (r *OutcomeRecord) Value() Outcome {
	if r == nil {
		return nil
	}
	switch {
	case r.Worker != nil:
		return r.Worker
	case r.Consultation != nil:
		return r.Consultation
	}
	return nil
}

// checkOutcome rejects a missing outcome or one for the other category.
func checkOutcome(w *WorkItem, o Outcome) error {
	missing := apperr.Validation("outcome is required", map[string]string{"outcome": "is required"})
	switch v := o.(type) {
	case *WorkerOutcome:
		if v == nil {
			return missing
		}
	case *ConsultationOutcome:
		if v == nil {
			return missing
		}
	default:
		return missing
	}
	if o.category() != w.Category {
		return apperr.Validation("outcome does not match item category",
			map[string]string{"outcome": "expected " + string(w.Category) + " outcome"})
	}
	return o.validate(w)
}
