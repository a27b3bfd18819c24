package appointment

import (
	"encoding/json"
	"time"

	"github.com/mesikahq/hospital-api/internal/dates"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var Statuses = []Status{StatusScheduled, StatusCompleted, StatusCancelled}

func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// maxNotesLength is in characters, matching the notes column.
const maxNotesLength = 1000

// Appointment books a doctor for a patient on one calendar day. The
// patient and doctor names are filled in by reads.
type Appointment struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patientId"`
	PatientName  string    `json:"patientName,omitempty"`
	PatientEmail string    `json:"patientEmail,omitempty"`
	DoctorID     string    `json:"doctorId"`
	DoctorName   string    `json:"doctorName,omitempty"`
	Date         time.Time `json:"appointmentDate"`
	Notes        string    `json:"notes"`
	Status       Status    `json:"status"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	UpdatedBy    string    `json:"updatedBy,omitempty"`
}

// MarshalJSON renders the appointment date without a time of day.
func (a *Appointment) MarshalJSON() ([]byte, error) {
	type Alias Appointment
	return json.Marshal(&struct {
		*Alias
		Date string `json:"appointmentDate"`
	}{
		Alias: (*Alias)(a),
		Date:  dates.Format(a.Date),
	})
}

// Actor identifies who changes an appointment. Name is stored as the
// updated-by label.
type Actor struct {
	AccountID string
	Name      string
}

type ScheduleRequest struct {
	PatientID string
	DoctorID  string
	Date      time.Time
	Notes     string
	// CreatedBy is the booking account's id.
	CreatedBy string
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	PatientID string
	DoctorID  string
	Status    Status
	On        *time.Time
	// From selects appointments on or after the day.
	From *time.Time
	// Newest orders by date descending instead of ascending.
	Newest bool
}
