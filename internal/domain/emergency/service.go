package emergency

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/auth"
	"github.com/sahayak/sahayak/internal/platform/db"
	"github.com/sahayak/sahayak/internal/platform/outbox"
	"github.com/sahayak/sahayak/pkg/geo"
)

// RequestEvent is the payload of emergency.<status> outbox messages.
type RequestEvent struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Type       string    `json:"type"`
	Urgency    string    `json:"urgency"`
	Location   Location  `json:"location"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to"`
	AssignedTo *string   `json:"assigned_to,omitempty"`
	At         time.Time `json:"at"`
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	facilities FacilityRepository
	requests   RequestRepository
	events     outbox.Store
	tx         db.Transactor
	log        zerolog.Logger
	now        func() time.Time
}

func NewService(facilities FacilityRepository, requests RequestRepository, events outbox.Store,
	tx db.Transactor, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		facilities: facilities,
		requests:   requests,
		events:     events,
		tx:         tx,
		log:        logger.With().Str("component", "emergency").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func isStaff(a auth.Actor) bool {
	return a.IsAdmin() || a.HasRole(auth.RoleASHA) || a.HasRole(auth.RoleDoctor)
}

// Nearby returns active facilities of serviceType around origin, nearest
// first. A radius of zero selects the type's default.
func (s *Service) Nearby(ctx context.Context, origin geo.Point, serviceType string, radiusKm float64) ([]Nearby, error) {
	details := map[string]string{}
	if !origin.Valid() {
		details["location"] = "coordinates out of range"
	}
	if serviceType != "" && !validTypes[serviceType] {
		details["type"] = "must be hospital, ambulance, blood_bank or pharmacy"
	}
	if radiusKm < 0 {
		details["radius"] = "must be positive"
	}
	if len(details) > 0 {
		return nil, apperr.Validation("invalid nearby search", details)
	}
	if radiusKm == 0 {
		radiusKm = DefaultRadiusKm(serviceType)
	}
	all, err := s.facilities.ListActive(ctx, serviceType)
	if err != nil {
		return nil, err
	}
	return Locate(origin, all, radiusKm), nil
}

func (s *Service) Search(ctx context.Context, term string) ([]*Facility, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperr.Validation("search term is required", map[string]string{"q": "is required"})
	}
	return s.facilities.Search(ctx, term)
}

func (s *Service) Contacts() Contacts { return NationalContacts }

func (s *Service) AddService(ctx context.Context, f *Facility) error {
	f.ID = uuid.Nil
	f.Active = true
	if err := f.Validate(); err != nil {
		return err
	}
	if err := s.facilities.Create(ctx, f); err != nil {
		return err
	}
	s.log.Info().Str("service_id", f.ID.String()).Str("type", f.Type).Msg("emergency service added")
	return nil
}

func (s *Service) UpdateService(ctx context.Context, id uuid.UUID, patch FacilityPatch) (*Facility, error) {
	f, err := s.facilities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(f)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := s.facilities.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) ListServices(ctx context.Context, serviceType string) ([]*Facility, error) {
	if serviceType != "" && !validTypes[serviceType] {
		return nil, apperr.Validation("invalid service type",
			map[string]string{"type": "must be hospital, ambulance, blood_bank or pharmacy"})
	}
	return s.facilities.ListActive(ctx, serviceType)
}

func (s *Service) enqueue(ctx context.Context, r *Request, from string) error {
	msg, err := outbox.NewMessage("emergency."+r.Status, r.ID.String(), RequestEvent{
		ID:         r.ID,
		UserID:     r.UserID,
		Type:       r.Type,
		Urgency:    r.Urgency,
		Location:   r.Location,
		From:       from,
		To:         r.Status,
		AssignedTo: r.AssignedTo,
		At:         r.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return s.events.Enqueue(ctx, msg)
}

// CreateRequest records a pending request. Patients raise requests for
// themselves; care staff may raise one on a patient's behalf.
func (s *Service) CreateRequest(ctx context.Context, actor auth.Actor, r *Request) error {
	if r.UserID == uuid.Nil {
		r.UserID, _ = uuid.Parse(actor.ID)
	}
	if r.UserID.String() != actor.ID && !isStaff(actor) {
		return apperr.Forbidden("cannot raise a request for another user")
	}
	if err := r.Validate(); err != nil {
		return err
	}
	now := s.now()
	r.ID = uuid.New()
	r.Status = StatusPending
	r.AssignedTo = nil
	r.CompletedAt = nil
	r.CreatedAt, r.UpdatedAt = now, now

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.requests.Create(ctx, r); err != nil {
			return err
		}
		return s.enqueue(ctx, r, "")
	})
	if err != nil {
		return err
	}
	s.log.Warn().Str("request_id", r.ID.String()).Str("type", r.Type).Str("urgency", r.Urgency).
		Msg("emergency request raised")
	return nil
}

// ListRequests returns userID's requests, newest first. Staff may pass
// uuid.Nil to list every request.
func (s *Service) ListRequests(ctx context.Context, actor auth.Actor, userID uuid.UUID) ([]*Request, error) {
	if userID == uuid.Nil {
		if isStaff(actor) {
			return s.requests.ListAll(ctx)
		}
		id, err := uuid.Parse(actor.ID)
		if err != nil {
			return nil, apperr.Forbidden("unknown caller")
		}
		userID = id
	}
	if userID.String() != actor.ID && !isStaff(actor) {
		return nil, apperr.Forbidden("cannot list another user's requests")
	}
	return s.requests.ListByUser(ctx, userID)
}

type StatusUpdate struct {
	Status     string  `json:"status"`
	AssignedTo *string `json:"assigned_to"`
	Notes      *string `json:"notes"`
}

// UpdateRequestStatus moves a request to u.Status. Completed and cancelled
// requests are final. The requester may only cancel.
func (s *Service) UpdateRequestStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, u StatusUpdate) (*Request, error) {
	if !validStatuses[u.Status] {
		return nil, apperr.Validation("invalid status",
			map[string]string{"status": "must be pending, accepted, in_progress, completed or cancelled"})
	}
	r, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	owner := r.UserID.String() == actor.ID
	if !isStaff(actor) && !(owner && u.Status == StatusCancelled) {
		return nil, apperr.Forbidden("not allowed to update this request")
	}
	from := r.Status
	if IsTerminal(from) {
		return nil, apperr.InvalidState("emergency request", id.String(), from, u.Status)
	}

	now := s.now()
	r.Status = u.Status
	if u.AssignedTo != nil {
		r.AssignedTo = u.AssignedTo
	}
	if u.Notes != nil {
		r.Notes = u.Notes
	}
	r.UpdatedAt = now
	if u.Status == StatusCompleted {
		r.CompletedAt = &now
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.requests.UpdateStatus(ctx, r, from)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("emergency request", id.String(), from, u.Status)
		}
		return s.enqueue(ctx, r, from)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("request_id", id.String()).Str("from", from).Str("to", r.Status).
		Msg("emergency request updated")
	return r, nil
}

func (s *Service) Statistics(ctx context.Context) (RequestStatistics, error) {
	all, err := s.requests.ListAll(ctx)
	if err != nil {
		return RequestStatistics{}, err
	}
	return ComputeStatistics(all), nil
}
