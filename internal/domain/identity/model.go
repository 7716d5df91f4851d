package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/pkg/geo"
)

const (
	RolePatient = "patient"
	RoleASHA    = "asha"
	RoleDoctor  = "doctor"
)

var validRoles = map[string]bool{
	RolePatient: true,
	RoleASHA:    true,
	RoleDoctor:  true,
}

type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

func (l Location) Point() geo.Point { return geo.Point{Lat: l.Lat, Lng: l.Lng} }

type EmergencyContact struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation"`
}

// AvailabilityWindow is a worker's weekly schedule, e.g. 09:00-17:00 Mon-Fri.
type AvailabilityWindow struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Days  []string `json:"days"`
}

// Person is a patient, ASHA worker or doctor. ID equals the auth subject.
type Person struct {
	ID      uuid.UUID `db:"id" json:"id"`
	Role    string    `db:"role" json:"role"`
	Name    string    `db:"name" json:"name"`
	Phone   string    `db:"phone" json:"phone"`
	Email   *string   `db:"email" json:"email,omitempty"`
	Aadhaar string    `db:"-" json:"aadhaar,omitempty"`
	// AadhaarHash is the SHA-256 of the number; the raw value is never stored.
	AadhaarHash *string   `db:"aadhaar_hash" json:"-"`
	Age         *int      `db:"age" json:"age,omitempty"`
	Gender      *string   `db:"gender" json:"gender,omitempty"`
	Address     *string   `db:"address" json:"address,omitempty"`
	Location    *Location `db:"-" json:"location,omitempty"`
	Languages   []string  `db:"languages" json:"languages"`
	Available   bool      `db:"available" json:"available"`

	LicenseNumber   *string  `db:"license_number" json:"license_number,omitempty"`
	Specialization  *string  `db:"specialization" json:"specialization,omitempty"`
	ExperienceYears *int     `db:"experience_years" json:"experience_years,omitempty"`
	ConsultationFee *float64 `db:"consultation_fee" json:"consultation_fee,omitempty"`
	Rating          *float64 `db:"rating" json:"rating,omitempty"`

	Diseases           []string            `db:"diseases" json:"diseases"`
	EmergencyContact   *EmergencyContact   `db:"emergency_contact" json:"emergency_contact,omitempty"`
	AvailabilityWindow *AvailabilityWindow `db:"availability_window" json:"availability_window,omitempty"`

	// DistanceKm is filled by proximity queries only.
	DistanceKm *float64 `db:"-" json:"distance_km,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Person) IsWorker() bool {
	return p.Role == RoleASHA || p.Role == RoleDoctor
}

var (
	phonePattern   = regexp.MustCompile(`^[6-9]\d{9}$`)
	aadhaarPattern = regexp.MustCompile(`^\d{12}$`)
	namePattern    = regexp.MustCompile(`^[\p{L} ]{2,50}$`)
)

// ValidPhone reports whether s is a ten digit Indian mobile number.
func ValidPhone(s string) bool { return phonePattern.MatchString(s) }

// Validate checks the person's fields and returns one Validation error
// listing every problem.
func (p *Person) Validate() error {
	details := map[string]string{}
	if !validRoles[p.Role] {
		details["role"] = "must be patient, asha or doctor"
	}
	if !namePattern.MatchString(strings.TrimSpace(p.Name)) {
		details["name"] = "must be 2-50 letters"
	}
	if !ValidPhone(p.Phone) {
		details["phone"] = "must be a 10 digit mobile number starting with 6-9"
	}
	if p.Aadhaar != "" && !aadhaarPattern.MatchString(p.Aadhaar) {
		details["aadhaar"] = "must be 12 digits"
	}
	if p.Age != nil && (*p.Age < 1 || *p.Age > 120) {
		details["age"] = "must be between 1 and 120"
	}
	if p.Location != nil && !p.Location.Point().Valid() {
		details["location"] = "latitude or longitude out of range"
	}
	if p.ConsultationFee != nil && *p.ConsultationFee < 0 {
		details["consultation_fee"] = "must not be negative"
	}
	if p.EmergencyContact != nil && p.EmergencyContact.Phone != "" && !ValidPhone(p.EmergencyContact.Phone) {
		details["emergency_contact.phone"] = "must be a 10 digit mobile number starting with 6-9"
	}
	if p.Role == RoleDoctor && (p.LicenseNumber == nil || *p.LicenseNumber == "") {
		details["license_number"] = "is required for doctors"
	}
	if len(details) > 0 {
		return apperr.Validation("invalid person", details)
	}
	return nil
}

// PersonPatch carries the fields a profile update may change.
type PersonPatch struct {
	Name               *string             `json:"name"`
	Email              *string             `json:"email"`
	Age                *int                `json:"age"`
	Gender             *string             `json:"gender"`
	Address            *string             `json:"address"`
	Languages          *[]string           `json:"languages"`
	Specialization     *string             `json:"specialization"`
	ExperienceYears    *int                `json:"experience_years"`
	ConsultationFee    *float64            `json:"consultation_fee"`
	Diseases           *[]string           `json:"diseases"`
	EmergencyContact   *EmergencyContact   `json:"emergency_contact"`
	AvailabilityWindow *AvailabilityWindow `json:"availability_window"`
}

func (pp PersonPatch) apply(p *Person) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Email != nil {
		p.Email = pp.Email
	}
	if pp.Age != nil {
		p.Age = pp.Age
	}
	if pp.Gender != nil {
		p.Gender = pp.Gender
	}
	if pp.Address != nil {
		p.Address = pp.Address
	}
	if pp.Languages != nil {
		p.Languages = *pp.Languages
	}
	if pp.Specialization != nil {
		p.Specialization = pp.Specialization
	}
	if pp.ExperienceYears != nil {
		p.ExperienceYears = pp.ExperienceYears
	}
	if pp.ConsultationFee != nil {
		p.ConsultationFee = pp.ConsultationFee
	}
	if pp.Diseases != nil {
		p.Diseases = *pp.Diseases
	}
	if pp.EmergencyContact != nil {
		p.EmergencyContact = pp.EmergencyContact
	}
	if pp.AvailabilityWindow != nil {
		p.AvailabilityWindow = pp.AvailabilityWindow
	}
}

// Near restricts a listing to persons within RadiusKm of a point.
type Near struct {
	Point    geo.Point
	RadiusKm float64
}

type ListFilter struct {
	Specialization string
	Language       string
	AvailableOnly  bool
}
