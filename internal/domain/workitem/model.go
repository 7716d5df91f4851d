// Package workitem is the lifecycle engine shared by ASHA worker tasks and
// doctor consultations. Both follow one state machine; consultations alone
// may be rejected.
package workitem

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sahayak/sahayak/internal/platform/apperr"
)

type Category string

const (
	CategoryTask         Category = "task"
	CategoryConsultation Category = "consultation"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Open reports whether the item still awaits work.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusAccepted || s == StatusInProgress
}

var validStatuses = map[Status]bool{
	StatusPending: true, StatusAccepted: true, StatusRejected: true,
	StatusInProgress: true, StatusCompleted: true, StatusCancelled: true,
}

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, validStatuses[st]
}

const (
	KindVitalsCheck      = "vitals_check"
	KindMedicineDelivery = "medicine_delivery"
	KindFollowUp         = "follow_up"
	KindEmergencyVisit   = "emergency_visit"

	KindAudio = "audio"
	KindVideo = "video"
	KindChat  = "chat"
)

var validKinds = map[Category]map[string]bool{
	CategoryTask: {
		KindVitalsCheck: true, KindMedicineDelivery: true, KindFollowUp: true, KindEmergencyVisit: true,
	},
	CategoryConsultation: {
		KindAudio: true, KindVideo: true, KindChat: true,
	},
}

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// priorityRank orders lists; higher first.
var priorityRank = map[string]int{
	PriorityLow: 1, PriorityMedium: 2, PriorityHigh: 3, PriorityUrgent: 4,
}

var validPriorities = map[Category]map[string]bool{
	CategoryTask:         {PriorityLow: true, PriorityMedium: true, PriorityHigh: true, PriorityUrgent: true},
	CategoryConsultation: {PriorityLow: true, PriorityMedium: true, PriorityHigh: true},
}

// transitions lists the reachable statuses from each status.
var transitions = map[Status][]Status{
	StatusPending:    {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
	StatusRejected:   {},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether an item of category may move from one
// status to another.
func CanTransition(category Category, from, to Status) bool {
	if to == StatusRejected && category != CategoryConsultation {
		return false
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// MinReasonLength applies to consultation reasons.
const MinReasonLength = 10

type WorkItem struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	Category        Category       `db:"category" json:"category"`
	SubjectID       uuid.UUID      `db:"subject_id" json:"subject_id"`
	AssigneeID      uuid.UUID      `db:"assignee_id" json:"assignee_id"`
	RequestedBy     uuid.UUID      `db:"requested_by" json:"requested_by"`
	Kind            string         `db:"kind" json:"kind"`
	Priority        string         `db:"priority" json:"priority"`
	Status          Status         `db:"status" json:"status"`
	Description     *string        `db:"description" json:"description,omitempty"`
	Reason          *string        `db:"reason" json:"reason,omitempty"`
	Notes           *string        `db:"notes" json:"notes,omitempty"`
	ScheduledAt     time.Time      `db:"scheduled_at" json:"scheduled_at"`
	StartedAt       *time.Time     `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time     `db:"cancelled_at" json:"cancelled_at,omitempty"`
	RejectionReason *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	DurationMinutes *int           `db:"duration_minutes" json:"duration_minutes,omitempty"`
	Outcome         *OutcomeRecord `db:"outcome" json:"outcome,omitempty"`
	PrescriptionID  *uuid.UUID     `db:"prescription_id" json:"prescription_id,omitempty"`
	VitalsID        *uuid.UUID     `db:"vitals_id" json:"vitals_id,omitempty"`
	Version         int            `db:"version" json:"version"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// Validate checks the fields a caller supplies on creation.
func (w *WorkItem) Validate() error {
	details := map[string]string{}
	kinds, ok := validKinds[w.Category]
	if !ok {
		details["category"] = "must be task or consultation"
	} else {
		if !kinds[w.Kind] {
			details["kind"] = "is not valid for " + string(w.Category)
		}
		if !validPriorities[w.Category][w.Priority] {
			details["priority"] = "is not valid for " + string(w.Category)
		}
	}
	if w.ScheduledAt.IsZero() {
		details["scheduled_at"] = "is required"
	}
	if w.SubjectID == uuid.Nil {
		details["subject_id"] = "is required"
	}
	if w.AssigneeID == uuid.Nil {
		details["assignee_id"] = "is required"
	}
	if w.Category == CategoryConsultation {
		if w.Reason == nil || len([]rune(strings.TrimSpace(*w.Reason))) < MinReasonLength {
			details["reason"] = "must be at least 10 characters"
		}
	}
	if len(details) > 0 {
		return apperr.Validation("invalid "+string(w.Category), details)
	}
	return nil
}

// Filter narrows List. Nil and empty fields match everything.
type Filter struct {
	AssigneeID *uuid.UUID
	SubjectID  *uuid.UUID
	// ParticipantID matches items the person is assigned to or requested.
	ParticipantID *uuid.UUID
	Category      *Category
	Statuses      []Status
	Kind          string
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time
}

// Matches is the in-process equivalent of the SQL filter.
func (f Filter) Matches(w *WorkItem) bool {
	if f.AssigneeID != nil && w.AssigneeID != *f.AssigneeID {
		return false
	}
	if f.SubjectID != nil && w.SubjectID != *f.SubjectID {
		return false
	}
	if f.ParticipantID != nil && w.AssigneeID != *f.ParticipantID && w.RequestedBy != *f.ParticipantID {
		return false
	}
	if f.Category != nil && w.Category != *f.Category {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if w.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Kind != "" && w.Kind != f.Kind {
		return false
	}
	if f.ScheduledFrom != nil && w.ScheduledAt.Before(*f.ScheduledFrom) {
		return false
	}
	if f.ScheduledTo != nil && w.ScheduledAt.After(*f.ScheduledTo) {
		return false
	}
	return true
}

// Less orders items by priority descending, then scheduled time ascending.
func Less(a, b *WorkItem) bool {
	ra, rb := priorityRank[a.Priority], priorityRank[b.Priority]
	if ra != rb {
		return ra > rb
	}
	return a.ScheduledAt.Before(b.ScheduledAt)
}
