// Package stats aggregates hospital-wide counters for the admin dashboard
// and reports.
package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mesikahq/hospital-api/internal/appointment"
	"github.com/mesikahq/hospital-api/internal/auth"
	"github.com/mesikahq/hospital-api/internal/dates"
	"github.com/mesikahq/hospital-api/internal/doctor"
	"github.com/mesikahq/hospital-api/internal/nurse"
	"github.com/mesikahq/hospital-api/internal/patient"
)

type Statistics struct {
	DoctorCount             int            `json:"doctorCount"`
	NurseCount              int            `json:"nurseCount"`
	PatientCount            int            `json:"patientCount"`
	AdminCount              int            `json:"adminCount"`
	TotalAppointments       int            `json:"totalAppointments"`
	TodayAppointments       int            `json:"todayAppointments"`
	AppointmentStatusCounts map[string]int `json:"appointmentStatusCounts"`
	PatientsByBloodGroup    map[string]int `json:"patientsByBloodGroup"`
	GeneratedAt             time.Time      `json:"generatedAt"`
}

type AccountLister interface {
	ListAccounts(ctx context.Context) ([]*auth.Account, error)
}

type DoctorLister interface {
	List(ctx context.Context) ([]*doctor.Doctor, error)
}

type NurseLister interface {
	List(ctx context.Context) ([]*nurse.Nurse, error)
}

type PatientLister interface {
	List(ctx context.Context) ([]*patient.Patient, error)
}

type AppointmentLister interface {
	List(ctx context.Context, f appointment.Filter) ([]*appointment.Appointment, error)
}

type Aggregator struct {
	accounts     AccountLister
	doctors      DoctorLister
	nurses       NurseLister
	patients     PatientLister
	appointments AppointmentLister
	now          func() time.Time
}

func NewAggregator(accounts AccountLister, doctors DoctorLister, nurses NurseLister, patients PatientLister, appointments AppointmentLister) *Aggregator {
	return &Aggregator{
		accounts:     accounts,
		doctors:      doctors,
		nurses:       nurses,
		patients:     patients,
		appointments: appointments,
		now:          time.Now,
	}
}

// AdminDashboard loads every collection and groups in memory. Results are
// not cached.
func (a *Aggregator) AdminDashboard(ctx context.Context) (*Statistics, error) {
	doctors, err := a.doctors.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count doctors: %w", err)
	}
	nurses, err := a.nurses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count nurses: %w", err)
	}
	patients, err := a.patients.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count patients: %w", err)
	}
	accounts, err := a.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	appointments, err := a.appointments.List(ctx, appointment.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}

	now := a.now()
	today := dates.Day(now)
	s := &Statistics{
		DoctorCount:             len(doctors),
		NurseCount:              len(nurses),
		PatientCount:            len(patients),
		TotalAppointments:       len(appointments),
		AppointmentStatusCounts: make(map[string]int, len(appointment.Statuses)),
		PatientsByBloodGroup:    map[string]int{},
		GeneratedAt:             now.UTC(),
	}

	for _, acc := range accounts {
		if acc.HasRole(auth.RoleAdmin) {
			s.AdminCount++
		}
	}

	for _, st := range appointment.Statuses {
		s.AppointmentStatusCounts[string(st)] = 0
	}
	for _, ap := range appointments {
		s.AppointmentStatusCounts[string(ap.Status)]++
		if ap.Date.Equal(today) {
			s.TodayAppointments++
		}
	}

	for _, p := range patients {
		if group := strings.TrimSpace(p.BloodGroup); group != "" {
			s.PatientsByBloodGroup[group]++
		}
	}

	return s, nil
}
