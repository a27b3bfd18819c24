package patient

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/dates"
)

// Patient is the role profile linked 1:1 to a PATIENT account. Age is derived
// from DateOfBirth when the patient is read.
type Patient struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"accountId"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	DateOfBirth      *time.Time `json:"dateOfBirth,omitempty"`
	Age              int        `json:"age"`
	Gender           string     `json:"gender"`
	PhoneNumber      string     `json:"phoneNumber"`
	Address          string     `json:"address"`
	BloodGroup       string     `json:"bloodGroup"`
	EmergencyContact string     `json:"emergencyContact"`
}

// MarshalJSON renders DateOfBirth as a plain date.
func (p *Patient) MarshalJSON() ([]byte, error) {
	type Alias Patient
	var dob string
	if p.DateOfBirth != nil {
		dob = dates.Format(*p.DateOfBirth)
	}
	return json.Marshal(&struct {
		*Alias
		DateOfBirth string `json:"dateOfBirth,omitempty"`
	}{
		Alias:       (*Alias)(p),
		DateOfBirth: dob,
	})
}

// Profile holds the editable fields. Nil fields are left unchanged; an empty
// DateOfBirth clears it.
type Profile struct {
	DateOfBirth      *string `json:"dateOfBirth"`
	Gender           *string `json:"gender"`
	PhoneNumber      *string `json:"phoneNumber"`
	Address          *string `json:"address"`
	BloodGroup       *string `json:"bloodGroup"`
	EmergencyContact *string `json:"emergencyContact"`
}

func (in Profile) apply(p *Patient, now time.Time) error {
	if in.DateOfBirth != nil {
		if strings.TrimSpace(*in.DateOfBirth) == "" {
			p.DateOfBirth = nil
		} else {
			dob, err := dates.Parse(strings.TrimSpace(*in.DateOfBirth))
			if err != nil {
				return apperr.Wrap(err, apperr.KindValidation, "Date of birth must be formatted as YYYY-MM-DD")
			}
			if dates.Before(now, dob) {
				return ErrFutureDateOfBirth
			}
			p.DateOfBirth = &dob
		}
	}
	if in.Gender != nil {
		p.Gender = strings.TrimSpace(*in.Gender)
	}
	if in.PhoneNumber != nil {
		p.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
	}
	if in.Address != nil {
		p.Address = strings.TrimSpace(*in.Address)
	}
	if in.BloodGroup != nil {
		p.BloodGroup = strings.ToUpper(strings.TrimSpace(*in.BloodGroup))
	}
	if in.EmergencyContact != nil {
		p.EmergencyContact = strings.TrimSpace(*in.EmergencyContact)
	}
	return nil
}
