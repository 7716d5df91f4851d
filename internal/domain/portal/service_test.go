package portal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sahayak/sahayak/internal/domain/identity"
	"github.com/sahayak/sahayak/internal/domain/prescription"
	"github.com/sahayak/sahayak/internal/domain/report"
	"github.com/sahayak/sahayak/internal/domain/vitals"
	"github.com/sahayak/sahayak/internal/domain/workitem"
	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/pkg/pagination"
)

type stubPeople map[uuid.UUID]*identity.Person

func (p stubPeople) GetPerson(_ context.Context, id uuid.UUID) (*identity.Person, error) {
	if person, ok := p[id]; ok {
		return person, nil
	}
	return nil, apperr.NotFound("person", id.String())
}

type stubVitals struct {
	latest *vitals.Reading
	err    error
}

func (v stubVitals) Latest(context.Context, uuid.UUID) (*vitals.Reading, error) {
	return v.latest, v.err
}

type stubReports struct {
	reports []*report.Report
	asked   int
}

func (r *stubReports) Recent(_ context.Context, _ uuid.UUID, n int) ([]*report.Report, error) {
	r.asked = n
	if len(r.reports) > n {
		return r.reports[:n], nil
	}
	return r.reports, nil
}

type stubPrescriptions []*prescription.Prescription

func (s stubPrescriptions) ListByPatient(_ context.Context, _ uuid.UUID, page pagination.Params) ([]*prescription.Prescription, int, error) {
	if len(s) > page.Limit {
		return s[:page.Limit], len(s), nil
	}
	return s, len(s), nil
}

type stubWork []*workitem.WorkItem

func (s stubWork) List(_ context.Context, f workitem.Filter, _ pagination.Params) ([]*workitem.WorkItem, int, error) {
	var out []*workitem.WorkItem
	for _, w := range s {
		if f.Matches(w) {
			out = append(out, w)
		}
	}
	return out, len(out), nil
}

var now = time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)

func item(patient uuid.UUID, cat workitem.Category, status workitem.Status, at time.Time) *workitem.WorkItem {
	return &workitem.WorkItem{ID: uuid.New(), Category: cat, SubjectID: patient, Status: status, ScheduledAt: at}
}

func TestPatientSummary(t *testing.T) {
	patient := uuid.New()
	other := uuid.New()
	people := stubPeople{patient: {ID: patient, Name: "Kamla Devi", Role: identity.RolePatient}}
	reading := &vitals.Reading{ID: uuid.New(), SubjectID: patient, Measurements: vitals.Measurements{
		BloodPressure: &vitals.BloodPressure{Systolic: 150, Diastolic: 96},
	}}

	var reports []*report.Report
	for i := 0; i < 7; i++ {
		reports = append(reports, &report.Report{ID: uuid.New(), PatientID: patient})
	}

	later := item(patient, workitem.CategoryConsultation, workitem.StatusAccepted, now.Add(48*time.Hour))
	sooner := item(patient, workitem.CategoryConsultation, workitem.StatusAccepted, now.Add(2*time.Hour))
	work := stubWork{
		later,
		sooner,
		item(patient, workitem.CategoryConsultation, workitem.StatusAccepted, now),
		item(patient, workitem.CategoryConsultation, workitem.StatusAccepted, now.Add(-time.Hour)),
		item(patient, workitem.CategoryConsultation, workitem.StatusPending, now.Add(time.Hour)),
		item(other, workitem.CategoryConsultation, workitem.StatusAccepted, now.Add(time.Hour)),
		item(patient, workitem.CategoryTask, workitem.StatusPending, now.Add(time.Hour)),
		item(patient, workitem.CategoryTask, workitem.StatusInProgress, now.Add(-time.Hour)),
		item(patient, workitem.CategoryTask, workitem.StatusCompleted, now.Add(-2*time.Hour)),
		item(patient, workitem.CategoryTask, workitem.StatusCancelled, now.Add(time.Hour)),
	}
	rx := stubPrescriptions{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}
	rs := &stubReports{reports: reports}

	svc := NewService(people, stubVitals{latest: reading}, rs, rx, work, zerolog.Nop())
	sum, err := svc.PatientSummary(context.Background(), patient, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sum.Patient.Name != "Kamla Devi" {
		t.Errorf("patient = %q", sum.Patient.Name)
	}
	if sum.LatestVitals == nil || sum.LatestVitals.ID != reading.ID {
		t.Errorf("latest vitals = %+v", sum.LatestVitals)
	}
	if sum.HealthScore == nil || *sum.HealthScore != 80 {
		t.Errorf("health score = %v, want 80", sum.HealthScore)
	}
	if rs.asked != RecentReportCount || len(sum.RecentReports) != 5 {
		t.Errorf("reports: asked %d, got %d", rs.asked, len(sum.RecentReports))
	}
	if len(sum.RecentPrescriptions) != RecentPrescriptionCount {
		t.Errorf("prescriptions = %d", len(sum.RecentPrescriptions))
	}
	if len(sum.UpcomingConsultations) != 2 {
		t.Fatalf("upcoming = %d, want 2", len(sum.UpcomingConsultations))
	}
	if sum.UpcomingConsultations[0].ID != sooner.ID || sum.UpcomingConsultations[1].ID != later.ID {
		t.Error("upcoming consultations must be soonest first")
	}
	if len(sum.OpenTasks) != 2 {
		t.Errorf("open tasks = %d, want 2", len(sum.OpenTasks))
	}
	if !sum.GeneratedAt.Equal(now) {
		t.Errorf("generated at = %v", sum.GeneratedAt)
	}
}

func TestPatientSummary_NoData(t *testing.T) {
	patient := uuid.New()
	svc := NewService(stubPeople{patient: {ID: patient}}, stubVitals{}, &stubReports{}, stubPrescriptions{}, stubWork{}, zerolog.Nop())

	sum, err := svc.PatientSummary(context.Background(), patient, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.LatestVitals != nil || sum.HealthScore != nil {
		t.Error("expected no vitals and no score")
	}
	if sum.RecentReports == nil || sum.UpcomingConsultations == nil || sum.OpenTasks == nil || sum.RecentPrescriptions == nil {
		t.Error("lists must be empty, not nil")
	}
}

func TestPatientSummary_UnknownPatient(t *testing.T) {
	svc := NewService(stubPeople{}, stubVitals{}, &stubReports{}, stubPrescriptions{}, stubWork{}, zerolog.Nop())
	_, err := svc.PatientSummary(context.Background(), uuid.New(), now)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestPatientSummary_SourceError(t *testing.T) {
	patient := uuid.New()
	boom := apperr.Upstream("postgres", errors.New("connection reset"))
	svc := NewService(stubPeople{patient: {ID: patient}}, stubVitals{err: boom}, &stubReports{}, stubPrescriptions{}, stubWork{}, zerolog.Nop())
	_, err := svc.PatientSummary(context.Background(), patient, now)
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Errorf("expected upstream error, got %v", err)
	}
}
