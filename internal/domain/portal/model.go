// Package portal assembles the patient home screen from the other stores.
package portal

import (
	"time"

	"github.com/google/uuid"

	"github.com/sahayak/sahayak/internal/domain/identity"
	"github.com/sahayak/sahayak/internal/domain/prescription"
	"github.com/sahayak/sahayak/internal/domain/report"
	"github.com/sahayak/sahayak/internal/domain/vitals"
	"github.com/sahayak/sahayak/internal/domain/workitem"
)

const (
	RecentReportCount       = 5
	RecentPrescriptionCount = 3
)

type PatientSummary struct {
	PatientID    uuid.UUID        `json:"patient_id"`
	Patient      *identity.Person `json:"patient"`
	LatestVitals *vitals.Reading  `json:"latest_vitals"`
	// HealthScore is nil until the patient has a reading.
	HealthScore           *int                         `json:"health_score"`
	RecentReports         []*report.Report             `json:"recent_reports"`
	RecentPrescriptions   []*prescription.Prescription `json:"recent_prescriptions"`
	UpcomingConsultations []*workitem.WorkItem         `json:"upcoming_consultations"`
	OpenTasks             []*workitem.WorkItem         `json:"open_tasks"`
	GeneratedAt           time.Time                    `json:"generated_at"`
}
