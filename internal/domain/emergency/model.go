package emergency

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/pkg/geo"
)

const (
	TypeHospital  = "hospital"
	TypeAmbulance = "ambulance"
	TypeBloodBank = "blood_bank"
	TypePharmacy  = "pharmacy"
)

var validTypes = map[string]bool{
	TypeHospital:  true,
	TypeAmbulance: true,
	TypeBloodBank: true,
	TypePharmacy:  true,
}

// FallbackRadiusKm applies to types without their own default.
const FallbackRadiusKm = 10.0

var defaultRadiusKm = map[string]float64{
	TypeHospital:  15,
	TypeAmbulance: 20,
	TypeBloodBank: 25,
	TypePharmacy:  5,
}

// DefaultRadiusKm is the search radius used when the caller gives none.
func DefaultRadiusKm(serviceType string) float64 {
	if r, ok := defaultRadiusKm[serviceType]; ok {
		return r
	}
	return FallbackRadiusKm
}

const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

var validUrgencies = map[string]bool{
	UrgencyLow:      true,
	UrgencyMedium:   true,
	UrgencyHigh:     true,
	UrgencyCritical: true,
}

const (
	StatusPending    = "pending"
	StatusAccepted   = "accepted"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var validStatuses = map[string]bool{
	StatusPending:    true,
	StatusAccepted:   true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

// IsTerminal reports whether a request in status s can no longer change.
func IsTerminal(s string) bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

func (l Location) Point() geo.Point { return geo.Point{Lat: l.Lat, Lng: l.Lng} }

// Facility is a directory entry: a hospital, ambulance operator, blood bank
// or pharmacy.
type Facility struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Location  Location  `json:"location"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email,omitempty"`
	Is24Hours bool      `json:"is_24_hours"`
	Services  []string  `json:"services"`
	Rating    *float64  `json:"rating,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (f *Facility) Validate() error {
	details := map[string]string{}
	if strings.TrimSpace(f.Name) == "" {
		details["name"] = "is required"
	}
	if !validTypes[f.Type] {
		details["type"] = "must be hospital, ambulance, blood_bank or pharmacy"
	}
	if !f.Location.Point().Valid() {
		details["location"] = "coordinates out of range"
	}
	if strings.TrimSpace(f.Phone) == "" {
		details["phone"] = "is required"
	}
	if f.Rating != nil && (*f.Rating < 0 || *f.Rating > 5) {
		details["rating"] = "must be between 0 and 5"
	}
	if len(details) > 0 {
		return apperr.Validation("invalid emergency service", details)
	}
	return nil
}

// FacilityPatch carries the fields UpdateService may change.
type FacilityPatch struct {
	Name      *string   `json:"name"`
	Location  *Location `json:"location"`
	Phone     *string   `json:"phone"`
	Email     *string   `json:"email"`
	Is24Hours *bool     `json:"is_24_hours"`
	Services  []string  `json:"services"`
	Rating    *float64  `json:"rating"`
	Active    *bool     `json:"active"`
}

func (p FacilityPatch) apply(f *Facility) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Location != nil {
		f.Location = *p.Location
	}
	if p.Phone != nil {
		f.Phone = *p.Phone
	}
	if p.Email != nil {
		f.Email = p.Email
	}
	if p.Is24Hours != nil {
		f.Is24Hours = *p.Is24Hours
	}
	if p.Services != nil {
		f.Services = p.Services
	}
	if p.Rating != nil {
		f.Rating = p.Rating
	}
	if p.Active != nil {
		f.Active = *p.Active
	}
}

// Nearby is a facility with its distance from the search origin.
type Nearby struct {
	*Facility
	DistanceKm float64 `json:"distance_km"`
}

// Request is a call for help raised by a user.
type Request struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Type        string     `json:"type"`
	Urgency     string     `json:"urgency"`
	Location    Location   `json:"location"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r *Request) Validate() error {
	details := map[string]string{}
	if r.UserID == uuid.Nil {
		details["user_id"] = "is required"
	}
	if !validTypes[r.Type] {
		details["type"] = "must be hospital, ambulance, blood_bank or pharmacy"
	}
	if !validUrgencies[r.Urgency] {
		details["urgency"] = "must be low, medium, high or critical"
	}
	if !r.Location.Point().Valid() {
		details["location"] = "coordinates out of range"
	}
	if len(details) > 0 {
		return apperr.Validation("invalid emergency request", details)
	}
	return nil
}

type RequestStatistics struct {
	Total                  int     `json:"total"`
	Pending                int     `json:"pending"`
	Completed              int     `json:"completed"`
	Critical               int     `json:"critical"`
	AverageResponseMinutes float64 `json:"average_response_minutes"`
}

// ComputeStatistics summarises requests. The average response time covers
// completed requests only and is rounded to whole minutes.
func ComputeStatistics(requests []*Request) RequestStatistics {
	var st RequestStatistics
	var responded time.Duration
	var n int
	for _, r := range requests {
		st.Total++
		switch r.Status {
		case StatusPending:
			st.Pending++
		case StatusCompleted:
			st.Completed++
			if r.CompletedAt != nil {
				responded += r.CompletedAt.Sub(r.CreatedAt)
				n++
			}
		}
		if r.Urgency == UrgencyCritical {
			st.Critical++
		}
	}
	if n > 0 {
		st.AverageResponseMinutes = float64((responded / time.Duration(n)).Round(time.Minute) / time.Minute)
	}
	return st
}

type Contacts struct {
	Police        string `json:"police"`
	Fire          string `json:"fire"`
	Medical       string `json:"medical"`
	Ambulance     string `json:"ambulance"`
	WomenHelpline string `json:"women_helpline"`
	ChildHelpline string `json:"child_helpline"`
}

// NationalContacts are the Indian emergency numbers.
var NationalContacts = Contacts{
	Police:        "100",
	Fire:          "101",
	Medical:       "108",
	Ambulance:     "108",
	WomenHelpline: "181",
	ChildHelpline: "1098",
}
