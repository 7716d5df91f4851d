package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/sahayak/sahayak/internal/domain/emergency"
	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/auth"
	"github.com/sahayak/sahayak/internal/platform/db"
	"github.com/sahayak/sahayak/internal/platform/outbox"
	"github.com/sahayak/sahayak/pkg/geo"
)

func newEmergencyService(t *testing.T, ctx context.Context) *emergency.Service {
	t.Helper()
	pool := newSchemaPool(t, ctx, 16)
	return emergency.NewService(
		emergency.NewFacilityRepoPG(pool),
		emergency.NewRequestRepoPG(pool),
		outbox.NewPGStore(pool),
		db.NewTransactor(pool),
		testLogger(),
	)
}

func TestEmergency_DirectoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newEmergencyService(t, ctx)

	origin := geo.Point{Lat: 26.8467, Lng: 80.9462}
	near := &emergency.Facility{
		Name:      "District Hospital 50% Wing",
		Type:      emergency.TypeHospital,
		Location:  emergency.Location{Lat: 26.8500, Lng: 80.9500, Address: "Hazratganj"},
		Phone:     "+915222000001",
		Is24Hours: true,
		Services:  []string{"icu", "trauma"},
		Rating:    ptrFloat(4.2),
	}
	far := &emergency.Facility{
		Name:     "Rural CHC",
		Type:     emergency.TypeHospital,
		Location: emergency.Location{Lat: 27.3000, Lng: 80.9462},
		Phone:    "+915222000002",
	}
	for _, f := range []*emergency.Facility{near, far} {
		if err := svc.AddService(ctx, f); err != nil {
			t.Fatalf("add %s: %v", f.Name, err)
		}
	}

	hits, err := svc.Nearby(ctx, origin, emergency.TypeHospital, 0)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != near.ID {
		t.Fatalf("nearby = %+v, want only the district hospital", hits)
	}
	if len(hits[0].Services) != 2 || !hits[0].Is24Hours {
		t.Errorf("facility fields not round-tripped: %+v", hits[0].Facility)
	}

	found, err := svc.Search(ctx, "50%")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].ID != near.ID {
		t.Errorf("search for a literal %% matched %d facilities", len(found))
	}

	inactive := false
	if _, err := svc.UpdateService(ctx, near.ID, emergency.FacilityPatch{Active: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	hits, _ = svc.Nearby(ctx, origin, emergency.TypeHospital, 100)
	if len(hits) != 1 || hits[0].ID != far.ID {
		t.Errorf("inactive facility still listed: %+v", hits)
	}
}

func TestEmergency_ConcurrentStatusUpdates(t *testing.T) {
	ctx := context.Background()
	svc := newEmergencyService(t, ctx)

	user := uuid.New()
	patient := auth.Actor{ID: user.String(), Roles: []string{auth.RolePatient}}
	r := &emergency.Request{
		Type:     emergency.TypeAmbulance,
		Urgency:  emergency.UrgencyCritical,
		Location: emergency.Location{Lat: 26.85, Lng: 80.95},
	}
	if err := svc.CreateRequest(ctx, patient, r); err != nil {
		t.Fatalf("create request: %v", err)
	}

	staff := auth.Actor{ID: uuid.NewString(), Roles: []string{auth.RoleASHA}}
	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		won     int
		refused int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateRequestStatus(ctx, staff, r.ID, emergency.StatusUpdate{Status: emergency.StatusCompleted})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, apperr.ErrInvalidState):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if won != 1 || refused != callers-1 {
		t.Fatalf("won=%d refused=%d, want 1 and %d", won, refused, callers-1)
	}

	list, err := svc.ListRequests(ctx, patient, uuid.Nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != emergency.StatusCompleted || list[0].CompletedAt == nil {
		t.Fatalf("list = %+v", list)
	}

	st, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if st.Total != 1 || st.Completed != 1 || st.Critical != 1 {
		t.Errorf("statistics = %+v", st)
	}
}
