package workitem

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/sahayak/sahayak/internal/domain/identity"
)

type Statistics struct {
	Total         int            `json:"total"`
	ByStatus      map[Status]int `json:"by_status"`
	Completed     int            `json:"completed"`
	Open          int            `json:"open"`
	ThisMonth     int            `json:"this_month"`
	AverageRating *float64       `json:"average_rating,omitempty"`
	TotalEarnings *float64       `json:"total_earnings,omitempty"`
}

// ComputeStatistics summarises an assignee's items. thisMonth counts items
// scheduled in the calendar month of now, in UTC. Earnings apply to
// consultations only.
func ComputeStatistics(items []*WorkItem, assignee *identity.Person, category Category, now time.Time) Statistics {
	items = lo.Filter(items, func(w *WorkItem, _ int) bool { return w.Category == category })

	byStatus := lo.CountValuesBy(items, func(w *WorkItem) Status { return w.Status })
	for st := range validStatuses {
		if _, ok := byStatus[st]; !ok {
			byStatus[st] = 0
		}
	}

	now = now.UTC()
	stats := Statistics{
		Total:     len(items),
		ByStatus:  byStatus,
		Completed: byStatus[StatusCompleted],
		Open:      byStatus[StatusPending] + byStatus[StatusAccepted] + byStatus[StatusInProgress],
		ThisMonth: lo.CountBy(items, func(w *WorkItem) bool {
			at := w.ScheduledAt.UTC()
			return at.Year() == now.Year() && at.Month() == now.Month()
		}),
	}
	if assignee != nil {
		stats.AverageRating = assignee.Rating
		if category == CategoryConsultation {
			fee := 0.0
			if assignee.ConsultationFee != nil {
				fee = *assignee.ConsultationFee
			}
			earnings := float64(stats.Completed) * fee
			stats.TotalEarnings = &earnings
		}
	}
	return stats
}

func (s *Service) Statistics(ctx context.Context, assigneeID uuid.UUID, category Category) (Statistics, error) {
	person, err := s.people.GetPerson(ctx, assigneeID)
	if err != nil {
		return Statistics{}, err
	}
	items, err := s.items.ListByAssignee(ctx, assigneeID, &category)
	if err != nil {
		return Statistics{}, err
	}
	return ComputeStatistics(items, person, category, s.now()), nil
}

type Dashboard struct {
	Pending        []*WorkItem        `json:"pending"`
	Today          []*WorkItem        `json:"today"`
	Statistics     Statistics         `json:"statistics"`
	RecentPatients []*identity.Person `json:"recent_patients"`
}

// RecentPatientLimit caps Dashboard.RecentPatients.
const RecentPatientLimit = 5

// Dashboard gathers what an ASHA worker or doctor sees on sign-in. The
// category follows the assignee's role.
func (s *Service) Dashboard(ctx context.Context, assigneeID uuid.UUID) (*Dashboard, error) {
	person, err := s.people.GetPerson(ctx, assigneeID)
	if err != nil {
		return nil, err
	}
	category := CategoryTask
	if person.Role == identity.RoleDoctor {
		category = CategoryConsultation
	}
	items, err := s.items.ListByAssignee(ctx, assigneeID, &category)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	d := &Dashboard{
		Pending: lo.Filter(items, func(w *WorkItem, _ int) bool { return w.Status == StatusPending }),
		Today: lo.Filter(items, func(w *WorkItem, _ int) bool {
			at := w.ScheduledAt.UTC()
			return !at.Before(dayStart) && at.Before(dayEnd)
		}),
		Statistics:     ComputeStatistics(items, person, category, now),
		RecentPatients: []*identity.Person{},
	}
	sort.SliceStable(d.Pending, func(i, j int) bool { return Less(d.Pending[i], d.Pending[j]) })
	sort.SliceStable(d.Today, func(i, j int) bool { return d.Today[i].ScheduledAt.Before(d.Today[j].ScheduledAt) })

	recent := append([]*WorkItem(nil), items...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].UpdatedAt.After(recent[j].UpdatedAt) })
	subjects := lo.Uniq(lo.Map(recent, func(w *WorkItem, _ int) uuid.UUID { return w.SubjectID }))
	for _, id := range subjects {
		if len(d.RecentPatients) == RecentPatientLimit {
			break
		}
		p, err := s.people.GetPerson(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("person_id", id.String()).Msg("recent patient lookup failed")
			continue
		}
		d.RecentPatients = append(d.RecentPatients, p)
	}
	return d, nil
}
