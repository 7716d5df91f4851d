package prescription

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
	"github.com/sahayak/sahayak/pkg/pagination"
)

// -- Mock Repository --

type mockPrescriptionRepo struct {
	store map[uuid.UUID]*Prescription
}

func newMockPrescriptionRepo() *mockPrescriptionRepo {
	return &mockPrescriptionRepo{store: make(map[uuid.UUID]*Prescription)}
}

func (m *mockPrescriptionRepo) Create(_ context.Context, p *Prescription) (bool, error) {
	for _, existing := range m.store {
		if existing.WorkItemID == p.WorkItemID {
			p.ID = existing.ID
			return false, nil
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	cp := *p
	m.store[p.ID] = &cp
	return true, nil
}

func (m *mockPrescriptionRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("prescription", id.String())
	}
	cp := *p
	return &cp, nil
}

func (m *mockPrescriptionRepo) GetByWorkItem(_ context.Context, workItemID uuid.UUID) (*Prescription, error) {
	for _, p := range m.store {
		if p.WorkItemID == workItemID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("prescription", workItemID.String())
}

func (m *mockPrescriptionRepo) list(match func(*Prescription) bool, limit, offset int) ([]*Prescription, int, error) {
	var all []*Prescription
	for _, p := range m.store {
		if match(p) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(all))
	return all[start:end], len(all), nil
}

func (m *mockPrescriptionRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return m.list(func(p *Prescription) bool { return p.PatientID == patientID }, limit, offset)
}

func (m *mockPrescriptionRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return m.list(func(p *Prescription) bool { return p.DoctorID == doctorID }, limit, offset)
}

func newTestService() (*Service, *mockPrescriptionRepo) {
	repo := newMockPrescriptionRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func metformin() []Medication {
	return []Medication{{Name: "Metformin", Dosage: "500mg", Frequency: "twice daily", Duration: "30 days"}}
}

func validPrescription() *Prescription {
	return &Prescription{
		WorkItemID:  uuid.New(),
		DoctorID:    uuid.New(),
		PatientID:   uuid.New(),
		Diagnosis:   "Type 2 diabetes",
		Medications: metformin(),
	}
}

func TestCreate(t *testing.T) {
	svc, repo := newTestService()
	p := validPrescription()

	id, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected id to be assigned")
	}
	got, err := svc.GetByWorkItem(context.Background(), p.WorkItemID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != id || got.Diagnosis != "Type 2 diabetes" {
		t.Errorf("unexpected prescription %+v", got)
	}
	if len(repo.store) != 1 {
		t.Errorf("expected 1 stored prescription, got %d", len(repo.store))
	}
}

func TestCreate_IdempotentOnWorkItem(t *testing.T) {
	svc, repo := newTestService()
	p := validPrescription()
	first, _ := svc.Create(context.Background(), p)

	again := validPrescription()
	again.WorkItemID = p.WorkItemID
	second, err := svc.Create(context.Background(), again)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected %s, got %s", first, second)
	}
	if len(repo.store) != 1 {
		t.Errorf("expected a single prescription, got %d", len(repo.store))
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Prescription)
		field  string
	}{
		{"blank diagnosis", func(p *Prescription) { p.Diagnosis = "  " }, "diagnosis"},
		{"no medications", func(p *Prescription) { p.Medications = nil }, "medications"},
		{"medication without dosage", func(p *Prescription) { p.Medications[0].Dosage = "" }, "medications[0].dosage"},
		{"no work item", func(p *Prescription) { p.WorkItemID = uuid.Nil }, "work_item_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			p := validPrescription()
			tt.mutate(p)
			_, err := svc.Create(context.Background(), p)
			var ae *apperr.Error
			if !errors.As(err, &ae) || !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := ae.Details[tt.field]; !ok {
				t.Errorf("expected detail %s, got %v", tt.field, ae.Details)
			}
		})
	}
}

func TestGetFor(t *testing.T) {
	svc, _ := newTestService()
	p := validPrescription()
	id, _ := svc.Create(context.Background(), p)

	allowed := []auth.Actor{
		{ID: p.PatientID.String(), Roles: []string{auth.RolePatient}},
		{ID: p.DoctorID.String(), Roles: []string{auth.RoleDoctor}},
		{ID: uuid.NewString(), Roles: []string{auth.RoleASHA}},
		{ID: "ops", Roles: []string{auth.RoleAdmin}},
	}
	for _, a := range allowed {
		if _, err := svc.GetFor(context.Background(), a, id); err != nil {
			t.Errorf("actor %v: unexpected error %v", a, err)
		}
	}

	other := auth.Actor{ID: uuid.NewString(), Roles: []string{auth.RoleDoctor}}
	if _, err := svc.GetFor(context.Background(), other, id); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if _, err := svc.GetFor(context.Background(), allowed[3], uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListByPatientAndDoctor(t *testing.T) {
	svc, _ := newTestService()
	patient, doctor := uuid.New(), uuid.New()
	for i := 0; i < 3; i++ {
		p := validPrescription()
		p.PatientID = patient
		if i < 2 {
			p.DoctorID = doctor
		}
		svc.Create(context.Background(), p)
	}

	items, total, err := svc.ListByPatient(context.Background(), patient, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Errorf("expected 2 of 3, got %d of %d", len(items), total)
	}

	_, total, _ = svc.ListByDoctor(context.Background(), doctor, pagination.Params{Limit: 20})
	if total != 2 {
		t.Errorf("expected 2 for doctor, got %d", total)
	}
}
