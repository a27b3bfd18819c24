package doctor

// Doctor is the role profile linked 1:1 to a DOCTOR account. Name and Email
// are read from the account.
type Doctor struct {
	ID                string  `json:"id"`
	AccountID         string  `json:"accountId"`
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	Specialization    string  `json:"specialization"`
	YearsOfExperience int     `json:"yearsOfExperience"`
	Charges           float64 `json:"charges"`
	PhoneNumber       string  `json:"phoneNumber"`
}

// Profile holds the editable fields. Nil fields are left unchanged.
type Profile struct {
	Specialization    *string  `json:"specialization"`
	YearsOfExperience *int     `json:"yearsOfExperience"`
	Charges           *float64 `json:"charges"`
	PhoneNumber       *string  `json:"phoneNumber"`
}

func (p Profile) apply(d *Doctor) {
	if p.Specialization != nil {
		d.Specialization = *p.Specialization
	}
	if p.YearsOfExperience != nil {
		d.YearsOfExperience = *p.YearsOfExperience
	}
	if p.Charges != nil {
		d.Charges = *p.Charges
	}
	if p.PhoneNumber != nil {
		d.PhoneNumber = *p.PhoneNumber
	}
}

func (d *Doctor) Validate() error {
	if d.AccountID == "" {
		return ErrInvalidDoctorData
	}
	if d.YearsOfExperience < 0 {
		return ErrInvalidExperience
	}
	if d.Charges < 0 {
		return ErrInvalidCharges
	}
	return nil
}
