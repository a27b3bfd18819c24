package record

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mesikahq/hospital-api/internal/dates"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFollowUp Status = "FOLLOW_UP"
	StatusResolved Status = "RESOLVED"
	StatusArchived Status = "ARCHIVED"
)

// ParseStatus accepts any of the four statuses case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusActive, StatusFollowUp, StatusResolved, StatusArchived:
		return st, nil
	}
	return "", ErrInvalidStatus
}

type MedicalRecord struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patientId"`
	PatientName  string    `json:"patientName,omitempty"`
	DoctorID     string    `json:"doctorId"`
	DoctorName   string    `json:"doctorName,omitempty"`
	VisitDate    time.Time `json:"visitDate"`
	Diagnosis    string    `json:"diagnosis"`
	Prescription string    `json:"prescription"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (r *MedicalRecord) MarshalJSON() ([]byte, error) {
	type Alias MedicalRecord
	return json.Marshal(&struct {
		*Alias
		VisitDate string `json:"visitDate"`
	}{
		Alias:     (*Alias)(r),
		VisitDate: dates.Format(r.VisitDate),
	})
}

type CreateInput struct {
	PatientID    string
	DoctorID     string
	VisitDate    time.Time
	Diagnosis    string
	Prescription string
	Status       string
}

// UpdateInput changes only the non-nil fields.
type UpdateInput struct {
	VisitDate    *time.Time
	Diagnosis    *string
	Prescription *string
	Status       *string
}

type Filter struct {
	PatientID string
	DoctorID  string
	Limit     int
}
