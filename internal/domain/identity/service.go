package identity

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/auth"
	"github.com/sahayak/sahayak/pkg/geo"
)

// DefaultNearbyRadiusKm is used by NearbyPatients when no radius is given.
const DefaultNearbyRadiusKm = 10.0

type Service struct {
	people PersonRepository
	log    zerolog.Logger
}

func NewService(people PersonRepository, logger zerolog.Logger) *Service {
	return &Service{people: people, log: logger.With().Str("component", "identity").Logger()}
}

// Register stores a new person. A non-admin registers themselves, so the
// person id becomes their auth subject.
func (s *Service) Register(ctx context.Context, actor auth.Actor, p *Person) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.ID = uuid.Nil
	if !actor.IsAdmin() {
		id, err := uuid.Parse(actor.ID)
		if err != nil {
			return apperr.Forbidden("caller identity is not a person id")
		}
		p.ID = id
	}
	if p.Aadhaar != "" {
		h := fmt.Sprintf("%x", sha256.Sum256([]byte(p.Aadhaar)))
		p.AadhaarHash = &h
		p.Aadhaar = ""
	}
	if p.Role == RolePatient {
		p.Available = false
	}
	return s.people.Create(ctx, p)
}

func (s *Service) GetPerson(ctx context.Context, id uuid.UUID) (*Person, error) {
	return s.people.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch PersonPatch) (*Person, error) {
	p, err := s.people.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.people.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetAvailability toggles whether a worker can be booked. Patients have no
// availability.
func (s *Service) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	p, err := s.people.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsWorker() {
		return apperr.Validation("only ASHA workers and doctors have availability", map[string]string{"role": p.Role})
	}
	return s.people.SetAvailability(ctx, id, available)
}

func (s *Service) UpdateLocation(ctx context.Context, id uuid.UUID, loc Location) error {
	if !loc.Point().Valid() {
		return apperr.Validation("invalid location", map[string]string{"location": "latitude or longitude out of range"})
	}
	return s.people.UpdateLocation(ctx, id, loc)
}

// ListAvailable returns available persons in role. With near set, only
// those with a location inside the radius are kept, nearest first.
func (s *Service) ListAvailable(ctx context.Context, role string, f ListFilter, near *Near) ([]*Person, error) {
	if role != RoleASHA && role != RoleDoctor {
		return nil, apperr.Validation("role must be asha or doctor", map[string]string{"role": role})
	}
	f.AvailableOnly = true
	people, err := s.people.ListByRole(ctx, role, f)
	if err != nil {
		return nil, err
	}
	if near == nil {
		return people, nil
	}
	return withinRadius(people, *near), nil
}

// NearbyPatients lists patients around an ASHA worker's recorded location.
func (s *Service) NearbyPatients(ctx context.Context, ashaID uuid.UUID, radiusKm float64) ([]*Person, error) {
	worker, err := s.people.GetByID(ctx, ashaID)
	if err != nil {
		return nil, err
	}
	if worker.Role != RoleASHA {
		return nil, apperr.Validation("person is not an ASHA worker", map[string]string{"role": worker.Role})
	}
	if worker.Location == nil {
		return nil, apperr.Validation("worker has no location on record", nil)
	}
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	patients, err := s.people.ListByRole(ctx, RolePatient, ListFilter{})
	if err != nil {
		return nil, err
	}
	return withinRadius(patients, Near{Point: worker.Location.Point(), RadiusKm: radiusKm}), nil
}

func withinRadius(people []*Person, near Near) []*Person {
	type hit struct {
		p *Person
		d float64
	}
	hits := lo.FilterMap(people, func(p *Person, _ int) (hit, bool) {
		if p.Location == nil {
			return hit{}, false
		}
		d := geo.HaversineKm(near.Point, p.Location.Point())
		return hit{p: p, d: d}, d <= near.RadiusKm
	})
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].d < hits[j].d })

	return lo.Map(hits, func(h hit, _ int) *Person {
		cp := *h.p
		rounded := geo.RoundKm(h.d)
		cp.DistanceKm = &rounded
		return &cp
	})
}
