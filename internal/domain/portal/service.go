package portal

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sahayak/sahayak/internal/domain/identity"
	"github.com/sahayak/sahayak/internal/domain/prescription"
	"github.com/sahayak/sahayak/internal/domain/report"
	"github.com/sahayak/sahayak/internal/domain/vitals"
	"github.com/sahayak/sahayak/internal/domain/workitem"
	"github.com/sahayak/sahayak/pkg/pagination"
)

type People interface {
	GetPerson(ctx context.Context, id uuid.UUID) (*identity.Person, error)
}

type VitalsSource interface {
	Latest(ctx context.Context, subjectID uuid.UUID) (*vitals.Reading, error)
}

type ReportSource interface {
	Recent(ctx context.Context, patientID uuid.UUID, n int) ([]*report.Report, error)
}

type PrescriptionSource interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]*prescription.Prescription, int, error)
}

type WorkSource interface {
	List(ctx context.Context, f workitem.Filter, page pagination.Params) ([]*workitem.WorkItem, int, error)
}

type Service struct {
	people        People
	vitals        VitalsSource
	reports       ReportSource
	prescriptions PrescriptionSource
	work          WorkSource
	log           zerolog.Logger
	now           func() time.Time
}

func NewService(people People, vitals VitalsSource, reports ReportSource, prescriptions PrescriptionSource,
	work WorkSource, logger zerolog.Logger) *Service {
	return &Service{
		people:        people,
		vitals:        vitals,
		reports:       reports,
		prescriptions: prescriptions,
		work:          work,
		log:           logger.With().Str("component", "portal").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Summary is PatientSummary at the current time.
func (s *Service) Summary(ctx context.Context, patientID uuid.UUID) (*PatientSummary, error) {
	return s.PatientSummary(ctx, patientID, s.now())
}

// PatientSummary collects the patient's latest vitals and score, recent
// reports and prescriptions, accepted consultations scheduled after now
// (soonest first) and open tasks.
func (s *Service) PatientSummary(ctx context.Context, patientID uuid.UUID, now time.Time) (*PatientSummary, error) {
	patient, err := s.people.GetPerson(ctx, patientID)
	if err != nil {
		return nil, err
	}
	sum := &PatientSummary{
		PatientID:             patientID,
		Patient:               patient,
		RecentReports:         []*report.Report{},
		RecentPrescriptions:   []*prescription.Prescription{},
		UpcomingConsultations: []*workitem.WorkItem{},
		OpenTasks:             []*workitem.WorkItem{},
		GeneratedAt:           now,
	}

	latest, err := s.vitals.Latest(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		score := vitals.HealthScore(latest.Measurements)
		sum.LatestVitals, sum.HealthScore = latest, &score
	}

	reports, err := s.reports.Recent(ctx, patientID, RecentReportCount)
	if err != nil {
		return nil, err
	}
	if reports != nil {
		sum.RecentReports = reports
	}

	rx, _, err := s.prescriptions.ListByPatient(ctx, patientID, pagination.Params{Limit: RecentPrescriptionCount})
	if err != nil {
		return nil, err
	}
	if rx != nil {
		sum.RecentPrescriptions = rx
	}

	page := pagination.Params{Limit: pagination.MaxLimit}
	consultation := workitem.CategoryConsultation
	upcoming, _, err := s.work.List(ctx, workitem.Filter{
		SubjectID:     &patientID,
		Category:      &consultation,
		Statuses:      []workitem.Status{workitem.StatusAccepted},
		ScheduledFrom: &now,
	}, page)
	if err != nil {
		return nil, err
	}
	for _, w := range upcoming {
		if w.ScheduledAt.After(now) {
			sum.UpcomingConsultations = append(sum.UpcomingConsultations, w)
		}
	}
	sort.SliceStable(sum.UpcomingConsultations, func(i, j int) bool {
		return sum.UpcomingConsultations[i].ScheduledAt.Before(sum.UpcomingConsultations[j].ScheduledAt)
	})

	task := workitem.CategoryTask
	open, _, err := s.work.List(ctx, workitem.Filter{
		SubjectID: &patientID,
		Category:  &task,
		Statuses:  []workitem.Status{workitem.StatusPending, workitem.StatusAccepted, workitem.StatusInProgress},
	}, page)
	if err != nil {
		return nil, err
	}
	if open != nil {
		sum.OpenTasks = open
	}

	s.log.Debug().Str("patient_id", patientID.String()).
		Int("reports", len(sum.RecentReports)).
		Int("upcoming", len(sum.UpcomingConsultations)).
		Int("open_tasks", len(sum.OpenTasks)).
		Msg("patient summary built")
	return sum, nil
}
