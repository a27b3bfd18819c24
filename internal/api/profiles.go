package api

import (
	"context"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/auth"
	"github.com/mesikahq/hospital-api/internal/doctor"
	"github.com/mesikahq/hospital-api/internal/nurse"
	"github.com/mesikahq/hospital-api/internal/patient"
)

// Profiles resolves an account's role profile id for auth.Middleware.
type Profiles struct {
	Doctors  doctor.Service
	Nurses   nurse.Service
	Patients patient.Service
}

var _ auth.ProfileResolver = Profiles{}

func (p Profiles) ProfileID(ctx context.Context, role auth.Role, accountID string) (string, error) {
	var (
		id  string
		err error
	)
	switch role {
	case auth.RoleDoctor:
		var d *doctor.Doctor
		if d, err = p.Doctors.GetByAccount(ctx, accountID); err == nil {
			id = d.ID
		}
	case auth.RoleNurse:
		var n *nurse.Nurse
		if n, err = p.Nurses.GetByAccount(ctx, accountID); err == nil {
			id = n.ID
		}
	case auth.RolePatient:
		var pt *patient.Patient
		if pt, err = p.Patients.GetByAccount(ctx, accountID); err == nil {
			id = pt.ID
		}
	}
	if apperr.Is(err, apperr.KindNotFound) {
		return "", nil
	}
	return id, err
}
