package nurse

type Nurse struct {
	ID                string `json:"id"`
	AccountID         string `json:"accountId"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	YearsOfExperience int    `json:"yearsOfExperience"`
	PhoneNumber       string `json:"phoneNumber"`
}

// Profile holds the editable fields. Nil fields are left unchanged.
type Profile struct {
	YearsOfExperience *int    `json:"yearsOfExperience"`
	PhoneNumber       *string `json:"phoneNumber"`
}

func (p Profile) apply(n *Nurse) {
	if p.YearsOfExperience != nil {
		n.YearsOfExperience = *p.YearsOfExperience
	}
	if p.PhoneNumber != nil {
		n.PhoneNumber = *p.PhoneNumber
	}
}
