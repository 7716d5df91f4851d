package vitals

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/auth"
)

// -- Mock Repository --

type mockReadingRepo struct {
	store    map[uuid.UUID]*Reading
	bySource map[uuid.UUID]uuid.UUID
	fail     error
}

func newMockReadingRepo() *mockReadingRepo {
	return &mockReadingRepo{store: make(map[uuid.UUID]*Reading), bySource: make(map[uuid.UUID]uuid.UUID)}
}

func (m *mockReadingRepo) Append(_ context.Context, rd *Reading) (bool, error) {
	if m.fail != nil {
		return false, m.fail
	}
	if rd.SourceWorkItemID != nil {
		if id, ok := m.bySource[*rd.SourceWorkItemID]; ok {
			rd.ID = id
			return false, nil
		}
	}
	if rd.ID == uuid.Nil {
		rd.ID = uuid.New()
	}
	rd.CreatedAt = time.Now()
	cp := *rd
	m.store[rd.ID] = &cp
	if rd.SourceWorkItemID != nil {
		m.bySource[*rd.SourceWorkItemID] = rd.ID
	}
	return true, nil
}

func (m *mockReadingRepo) GetByID(_ context.Context, id uuid.UUID) (*Reading, error) {
	rd, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("vitals reading", id.String())
	}
	cp := *rd
	return &cp, nil
}

func (m *mockReadingRepo) ListBySubject(_ context.Context, subjectID uuid.UUID, limit int) ([]*Reading, error) {
	var out []*Reading
	for _, rd := range m.store {
		if rd.SubjectID == subjectID {
			cp := *rd
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestService() (*Service, *mockReadingRepo) {
	repo := newMockReadingRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func normalBP() Measurements {
	return Measurements{BloodPressure: &BloodPressure{Systolic: 120, Diastolic: 80}}
}

func TestAppend_IdempotentOnSource(t *testing.T) {
	svc, repo := newTestService()
	item := uuid.New()
	subject := uuid.New()

	first, err := svc.Append(context.Background(), &Reading{SubjectID: subject, RecordedBy: RecordedByASHA, SourceWorkItemID: &item, Measurements: normalBP()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Append(context.Background(), &Reading{SubjectID: subject, RecordedBy: RecordedByASHA, SourceWorkItemID: &item, Measurements: normalBP()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected the same id, got %s and %s", first, second)
	}
	if len(repo.store) != 1 {
		t.Errorf("expected 1 stored reading, got %d", len(repo.store))
	}
}

func TestAppend_Validation(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.Append(context.Background(), &Reading{SubjectID: uuid.New(), Measurements: Measurements{HeartRate: intp(250)}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.Append(context.Background(), &Reading{Measurements: normalBP()})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for missing subject, got %v", err)
	}
	if len(repo.store) != 0 {
		t.Error("nothing should be stored")
	}
}

func TestAppend_DefaultsUnitAndTime(t *testing.T) {
	svc, repo := newTestService()
	id, err := svc.Append(context.Background(), &Reading{
		SubjectID:    uuid.New(),
		Measurements: Measurements{BloodSugar: &BloodSugar{Value: 140}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := repo.store[id]
	if got.BloodSugar.Unit != UnitMgDL {
		t.Errorf("expected mg/dL, got %q", got.BloodSugar.Unit)
	}
	if got.RecordedAt.IsZero() {
		t.Error("expected recorded_at to be set")
	}
}

func TestRecord_PatientSelf(t *testing.T) {
	svc, _ := newTestService()
	patient := uuid.New()
	actor := auth.Actor{ID: patient.String(), Roles: []string{auth.RolePatient}}

	rd, err := svc.Record(context.Background(), actor, uuid.Nil, normalBP(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rd.SubjectID != patient || rd.RecordedBy != RecordedBySelf {
		t.Errorf("expected self reading for %s, got %+v", patient, rd)
	}
}

func TestRecord_PatientForOtherForbidden(t *testing.T) {
	svc, _ := newTestService()
	actor := auth.Actor{ID: uuid.NewString(), Roles: []string{auth.RolePatient}}

	_, err := svc.Record(context.Background(), actor, uuid.New(), normalBP(), time.Time{})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRecord_WorkerForPatient(t *testing.T) {
	svc, _ := newTestService()
	patient := uuid.New()
	asha := uuid.New()
	actor := auth.Actor{ID: asha.String(), Roles: []string{auth.RoleASHA}}

	rd, err := svc.Record(context.Background(), actor, patient, normalBP(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rd.SubjectID != patient || rd.RecordedBy != RecordedByASHA || rd.RecordedByID != asha {
		t.Errorf("unexpected reading %+v", rd)
	}
}

func TestLatestAndList(t *testing.T) {
	svc, _ := newTestService()
	subject := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		hr := 70 + i
		if _, err := svc.Append(context.Background(), &Reading{
			SubjectID:    subject,
			RecordedAt:   base.Add(time.Duration(i) * time.Hour),
			Measurements: Measurements{HeartRate: &hr},
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	latest, err := svc.Latest(context.Background(), subject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *latest.HeartRate != 72 {
		t.Errorf("expected newest reading, got heart rate %d", *latest.HeartRate)
	}

	items, _ := svc.List(context.Background(), subject, 2)
	if len(items) != 2 || *items[0].HeartRate != 72 || *items[1].HeartRate != 71 {
		t.Errorf("expected two newest readings in order, got %d", len(items))
	}

	none, err := svc.Latest(context.Background(), uuid.New())
	if err != nil || none != nil {
		t.Errorf("expected nil reading, got %v, %v", none, err)
	}
}
