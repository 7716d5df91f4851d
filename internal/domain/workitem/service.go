package workitem

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sahayak/sahayak/internal/domain/identity"
	"github.com/sahayak/sahayak/internal/domain/prescription"
	"github.com/sahayak/sahayak/internal/domain/vitals"
	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/auth"
	"github.com/sahayak/sahayak/internal/platform/db"
	"github.com/sahayak/sahayak/internal/platform/metrics"
	"github.com/sahayak/sahayak/internal/platform/outbox"
	"github.com/sahayak/sahayak/pkg/pagination"
)

// DefaultMaxConsultationMinutes bounds the recorded consultation duration.
const DefaultMaxConsultationMinutes = 180

type PersonLookup interface {
	GetPerson(ctx context.Context, id uuid.UUID) (*identity.Person, error)
}

type VitalsAppender interface {
	Append(ctx context.Context, rd *vitals.Reading) (uuid.UUID, error)
}

type PrescriptionWriter interface {
	Create(ctx context.Context, p *prescription.Prescription) (uuid.UUID, error)
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMaxConsultationMinutes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxMinutes = n
		}
	}
}

type Service struct {
	items         WorkItemRepository
	people        PersonLookup
	vitals        VitalsAppender
	prescriptions PrescriptionWriter
	events        outbox.Store
	tx            db.Transactor
	log           zerolog.Logger
	now           func() time.Time
	maxMinutes    int
}

func NewService(
	items WorkItemRepository,
	people PersonLookup,
	vitals VitalsAppender,
	prescriptions PrescriptionWriter,
	events outbox.Store,
	tx db.Transactor,
	logger zerolog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		items:         items,
		people:        people,
		vitals:        vitals,
		prescriptions: prescriptions,
		events:        events,
		tx:            tx,
		log:           logger.With().Str("component", "workitem").Logger(),
		now:           time.Now,
		maxMinutes:    DefaultMaxConsultationMinutes,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func assigneeRole(c Category) string {
	if c == CategoryConsultation {
		return identity.RoleDoctor
	}
	return identity.RoleASHA
}

// Create books a new item in pending. A patient books for themselves; a
// doctor may assign a worker task for one of their patients.
func (s *Service) Create(ctx context.Context, actor auth.Actor, w *WorkItem) error {
	actorID, parseErr := uuid.Parse(actor.ID)
	switch {
	case actor.IsAdmin():
		if parseErr == nil {
			w.RequestedBy = actorID
		} else {
			w.RequestedBy = w.SubjectID
		}
	case actor.HasRole(auth.RolePatient):
		if parseErr != nil {
			return apperr.Forbidden("caller identity is not a person id")
		}
		w.SubjectID = actorID
		w.RequestedBy = actorID
	case actor.HasRole(auth.RoleDoctor) && w.Category == CategoryTask:
		if parseErr != nil {
			return apperr.Forbidden("caller identity is not a person id")
		}
		w.RequestedBy = actorID
	default:
		return apperr.Forbidden("not allowed to request a " + string(w.Category))
	}

	if w.Priority == "" {
		w.Priority = PriorityMedium
	}
	if err := w.Validate(); err != nil {
		return err
	}

	subject, err := s.people.GetPerson(ctx, w.SubjectID)
	if err != nil {
		return err
	}
	if subject.Role != identity.RolePatient {
		return apperr.Validation("subject must be a patient", map[string]string{"subject_id": "is not a patient"})
	}
	assignee, err := s.people.GetPerson(ctx, w.AssigneeID)
	if err != nil {
		return err
	}
	if want := assigneeRole(w.Category); assignee.Role != want {
		return apperr.Validation("assignee has the wrong role", map[string]string{"assignee_id": "must be a " + want})
	}

	w.ID = uuid.Nil
	w.Status = StatusPending
	w.StartedAt, w.CompletedAt, w.CancelledAt = nil, nil, nil
	w.RejectionReason, w.DurationMinutes, w.Outcome = nil, nil, nil
	w.PrescriptionID, w.VitalsID = nil, nil

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.items.Create(ctx, w); err != nil {
			return err
		}
		return s.enqueue(ctx, w, "", s.now().UTC())
	})
	if err != nil {
		return err
	}
	s.log.Info().
		Str("work_item_id", w.ID.String()).
		Str("category", string(w.Category)).
		Str("kind", w.Kind).
		Msg("work item created")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*WorkItem, error) {
	return s.items.GetByID(ctx, id)
}

// GetFor returns the item if actor participates in it or is staff.
func (s *Service) GetFor(ctx context.Context, actor auth.Actor, id uuid.UUID) (*WorkItem, error) {
	w, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || isParticipant(actor, w) {
		return w, nil
	}
	return nil, apperr.Forbidden("not a participant of this " + string(w.Category))
}

func isParticipant(actor auth.Actor, w *WorkItem) bool {
	return actor.ID == w.AssigneeID.String() || actor.ID == w.SubjectID.String() || actor.ID == w.RequestedBy.String()
}

func (s *Service) List(ctx context.Context, f Filter, page pagination.Params) ([]*WorkItem, int, error) {
	return s.items.List(ctx, f, page.Limit, page.Offset)
}

// ListFor scopes f to what actor may see. Patients see items about
// themselves; workers see items they are assigned to or requested, further
// narrowed by any subject or assignee in f.
func (s *Service) ListFor(ctx context.Context, actor auth.Actor, f Filter, page pagination.Params) ([]*WorkItem, int, error) {
	if !actor.IsAdmin() {
		id, err := uuid.Parse(actor.ID)
		if err != nil {
			return nil, 0, apperr.Forbidden("caller identity is not a person id")
		}
		switch {
		case actor.HasRole(auth.RoleDoctor) || actor.HasRole(auth.RoleASHA):
			f.ParticipantID = &id
		default:
			f.SubjectID = &id
		}
	}
	return s.List(ctx, f, page)
}

// authorize allows the assignee and admins; the subject may also cancel.
func authorize(actor auth.Actor, w *WorkItem, op string) error {
	if actor.IsAdmin() || actor.ID == w.AssigneeID.String() {
		return nil
	}
	if op == "cancel" && actor.ID == w.SubjectID.String() {
		return nil
	}
	return apperr.Forbidden("only the assignee may " + op + " this " + string(w.Category))
}

// transition is the single write path. It checks the state machine, lets
// prepare set the new fields, runs before inside the transaction ahead of
// the conditional status flip, and enqueues the event.
func (s *Service) transition(
	ctx context.Context,
	actor auth.Actor,
	id uuid.UUID,
	op string,
	to Status,
	prepare func(w *WorkItem, now time.Time) error,
	before func(ctx context.Context, w *WorkItem) error,
) (*WorkItem, error) {
	w, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, w, op); err != nil {
		return nil, err
	}
	from := w.Status
	if !CanTransition(w.Category, from, to) {
		metrics.RecordTransitionDenied(string(w.Category), op)
		return nil, apperr.InvalidState(string(w.Category), id.String(), string(from), op)
	}

	now := s.now().UTC()
	if prepare != nil {
		if err := prepare(w, now); err != nil {
			return nil, err
		}
	}
	w.Status = to
	w.UpdatedAt = now

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if before != nil {
			if err := before(ctx, w); err != nil {
				return err
			}
		}
		ok, err := s.items.Transition(ctx, w, from)
		if err != nil {
			return err
		}
		if !ok {
			return s.lostRace(ctx, id, op)
		}
		return s.enqueue(ctx, w, from, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(w.Category), string(from), string(to))
	s.log.Info().
		Str("work_item_id", w.ID.String()).
		Str("category", string(w.Category)).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor", actor.ID).
		Msg("work item transition")
	return w, nil
}

// lostRace explains a conditional update that matched no row.
func (s *Service) lostRace(ctx context.Context, id uuid.UUID, op string) error {
	current, err := s.items.GetByID(ctx, id)
	if err != nil {
		return err
	}
	metrics.RecordTransitionDenied(string(current.Category), op)
	return apperr.InvalidState(string(current.Category), id.String(), string(current.Status), op)
}

func (s *Service) enqueue(ctx context.Context, w *WorkItem, from Status, at time.Time) error {
	ev := outbox.TransitionEvent{
		ID:          w.ID,
		Category:    string(w.Category),
		Kind:        w.Kind,
		SubjectID:   w.SubjectID,
		AssigneeID:  w.AssigneeID,
		From:        string(from),
		To:          string(w.Status),
		At:          at,
		ScheduledAt: w.ScheduledAt,
	}
	if w.RejectionReason != nil {
		ev.Reason = *w.RejectionReason
	}
	switch o := w.Outcome.Value().(type) {
	case *WorkerOutcome:
		ev.Notes = o.Notes
	case *ConsultationOutcome:
		ev.Notes = o.Notes
		ev.Diagnosis = o.Diagnosis
		if o.FollowUpDate != nil {
			ev.FollowUp = o.FollowUpDate.Format("2006-01-02")
		}
	}
	msg, err := outbox.NewMessage("workitem."+string(w.Status), w.ID.String(), ev)
	if err != nil {
		return err
	}
	return s.events.Enqueue(ctx, msg)
}

func (s *Service) Accept(ctx context.Context, actor auth.Actor, id uuid.UUID) (*WorkItem, error) {
	return s.transition(ctx, actor, id, "accept", StatusAccepted, nil, nil)
}

// Reject declines a pending consultation. Tasks cannot be rejected.
func (s *Service) Reject(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*WorkItem, error) {
	return s.transition(ctx, actor, id, "reject", StatusRejected, func(w *WorkItem, _ time.Time) error {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return apperr.Validation("a rejection reason is required", map[string]string{"reason": "is required"})
		}
		w.RejectionReason = &reason
		return nil
	}, nil)
}

func (s *Service) Start(ctx context.Context, actor auth.Actor, id uuid.UUID) (*WorkItem, error) {
	return s.transition(ctx, actor, id, "start", StatusInProgress, func(w *WorkItem, now time.Time) error {
		w.StartedAt = &now
		return nil
	}, nil)
}

func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID) (*WorkItem, error) {
	return s.transition(ctx, actor, id, "cancel", StatusCancelled, func(w *WorkItem, now time.Time) error {
		w.CancelledAt = &now
		return nil
	}, nil)
}

// Complete closes an in-progress item. Within one transaction it appends
// the outcome's vitals, writes the prescription, flips the status and
// enqueues the event; a failure in any step leaves the item in progress.
func (s *Service) Complete(ctx context.Context, actor auth.Actor, id uuid.UUID, outcome Outcome) (*WorkItem, error) {
	prepare := func(w *WorkItem, now time.Time) error {
		if err := checkOutcome(w, outcome); err != nil {
			return err
		}
		w.CompletedAt = &now
		w.Outcome = recordOf(outcome)
		if w.Category == CategoryConsultation && w.StartedAt != nil {
			d := s.clampMinutes(now.Sub(*w.StartedAt))
			w.DurationMinutes = &d
		}
		return nil
	}

	sideEffects := func(ctx context.Context, w *WorkItem) error {
		switch o := outcome.(type) {
		case *WorkerOutcome:
			if o.Vitals == nil {
				return nil
			}
			itemID := w.ID
			vid, err := s.vitals.Append(ctx, &vitals.Reading{
				SubjectID:        w.SubjectID,
				RecordedBy:       vitals.RecordedByASHA,
				RecordedByID:     w.AssigneeID,
				SourceWorkItemID: &itemID,
				RecordedAt:       *w.CompletedAt,
				Measurements:     *o.Vitals,
			})
			if err != nil {
				return err
			}
			w.VitalsID = &vid
		case *ConsultationOutcome:
			if !o.prescribes() {
				return nil
			}
			var notes *string
			if o.Notes != "" {
				notes = &o.Notes
			}
			pid, err := s.prescriptions.Create(ctx, &prescription.Prescription{
				WorkItemID:   w.ID,
				DoctorID:     w.AssigneeID,
				PatientID:    w.SubjectID,
				Diagnosis:    o.Diagnosis,
				Medications:  o.Medications,
				FollowUpDate: o.FollowUpDate,
				Notes:        notes,
			})
			if err != nil {
				return err
			}
			w.PrescriptionID = &pid
		}
		return nil
	}

	return s.transition(ctx, actor, id, "complete", StatusCompleted, prepare, sideEffects)
}

// clampMinutes rounds d to the nearest minute within [1, maxMinutes].
func (s *Service) clampMinutes(d time.Duration) int {
	m := int(math.Round(d.Minutes()))
	if m < 1 {
		return 1
	}
	if m > s.maxMinutes {
		return s.maxMinutes
	}
	return m
}
