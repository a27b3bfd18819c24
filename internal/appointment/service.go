package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/audit"
	"github.com/mesikahq/hospital-api/internal/dates"
	"github.com/mesikahq/hospital-api/internal/doctor"
	"github.com/mesikahq/hospital-api/internal/notification"
	"github.com/mesikahq/hospital-api/internal/patient"
)

var (
	ErrAppointmentNotFound = apperr.NotFound("Appointment not found")
	ErrPastDate            = apperr.Validation("Appointment date cannot be in the past")
	ErrMissingDate         = apperr.Validation("Appointment date is required")
	ErrConflict            = apperr.Validation("Doctor already has an appointment scheduled on this date")
	ErrNotesTooLong        = apperr.Validation(fmt.Sprintf("Notes cannot exceed %d characters", maxNotesLength))
	// ErrInvalidState is wrapped by every rejected status transition.
	ErrInvalidState = apperr.Validation("Appointment is not scheduled")

	errPatientMissing = patient.ErrPatientNotFound
	errDoctorMissing  = doctor.ErrDoctorNotFound
)

func stateError(action string) error {
	return apperr.Wrap(ErrInvalidState, apperr.KindValidation, "Only scheduled appointments can be "+action)
}

// PatientFinder and DoctorFinder resolve the parties of an appointment.
type PatientFinder interface {
	Get(ctx context.Context, id string) (*patient.Patient, error)
}

type DoctorFinder interface {
	Get(ctx context.Context, id string) (*doctor.Doctor, error)
}

// Notifier receives best-effort appointment notifications. Implementations
// must not block.
type Notifier interface {
	AppointmentScheduled(n notification.Notice)
	AppointmentRescheduled(n notification.Notice)
	AppointmentCancelled(n notification.Notice)
	AppointmentReminder(n notification.Notice)
}

type Service interface {
	Schedule(ctx context.Context, req ScheduleRequest) (*Appointment, error)
	Reschedule(ctx context.Context, id string, date time.Time, actor Actor) (*Appointment, error)
	Cancel(ctx context.Context, id string, actor Actor) (*Appointment, error)
	Complete(ctx context.Context, id string, actor Actor) (*Appointment, error)
	HasConflict(ctx context.Context, doctorID string, date time.Time, excludeID string) (bool, error)

	Get(ctx context.Context, id string) (*Appointment, error)
	List(ctx context.Context, f Filter) ([]*Appointment, error)
	Today(ctx context.Context, doctorID string) ([]*Appointment, error)
	Upcoming(ctx context.Context, f Filter) ([]*Appointment, error)
	Past(ctx context.Context, patientID string) ([]*Appointment, error)
	Delete(ctx context.Context, id string, actor Actor) error

	SendReminders(ctx context.Context, day time.Time) (int, error)
}

type service struct {
	repo     Repository
	patients PatientFinder
	doctors  DoctorFinder
	notifier Notifier
	audit    audit.Service
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientFinder, doctors DoctorFinder, notifier Notifier, auditSvc audit.Service, logger *zap.Logger) Service {
	return &service{
		repo:     repo,
		patients: patients,
		doctors:  doctors,
		notifier: notifier,
		audit:    auditSvc,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *service) today() time.Time {
	return dates.Day(s.now())
}

func (s *service) Schedule(ctx context.Context, req ScheduleRequest) (*Appointment, error) {
	if req.Date.IsZero() {
		return nil, ErrMissingDate
	}
	day := dates.Day(req.Date)
	if day.Before(s.today()) {
		return nil, ErrPastDate
	}
	notes := strings.TrimSpace(req.Notes)
	if utf8.RuneCountInString(notes) > maxNotesLength {
		return nil, ErrNotesTooLong
	}

	p, err := s.patients.Get(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	d, err := s.doctors.Get(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a := &Appointment{
		ID:           uuid.New().String(),
		PatientID:    p.ID,
		PatientName:  p.Name,
		PatientEmail: p.Email,
		DoctorID:     d.ID,
		DoctorName:   d.Name,
		Date:         day,
		Notes:        notes,
		Status:       StatusScheduled,
		CreatedBy:    req.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.repo.WithSlotLock(ctx, d.ID, day, func(tx Repository) error {
		taken, err := hasConflict(ctx, tx, d.ID, day, "")
		if err != nil {
			return err
		}
		if taken {
			return ErrConflict
		}
		return tx.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Appointment scheduled",
		zap.String("appointment_id", a.ID),
		zap.String("doctor_id", a.DoctorID),
		zap.String("date", dates.Format(day)),
	)
	s.logAudit(ctx, audit.EventModify, req.CreatedBy, "SCHEDULE", a.ID)
	s.notifier.AppointmentScheduled(noticeFor(a))

	return a, nil
}

func (s *service) Reschedule(ctx context.Context, id string, date time.Time, actor Actor) (*Appointment, error) {
	if date.IsZero() {
		return nil, ErrMissingDate
	}
	day := dates.Day(date)

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusScheduled {
		return nil, stateError("rescheduled")
	}
	if day.Before(s.today()) {
		return nil, ErrPastDate
	}

	var updated *Appointment
	err = s.repo.WithSlotLock(ctx, current.DoctorID, day, func(tx Repository) error {
		// Re-read inside the transaction; the status may have changed.
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != StatusScheduled {
			return stateError("rescheduled")
		}

		taken, err := hasConflict(ctx, tx, a.DoctorID, day, a.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrConflict
		}

		a.Date = day
		a.UpdatedAt = s.now().UTC()
		a.UpdatedBy = actor.Name
		if err := tx.Update(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventModify, actor.AccountID, "RESCHEDULE", updated.ID)
	s.notifier.AppointmentRescheduled(noticeFor(updated))

	return updated, nil
}

func (s *service) Cancel(ctx context.Context, id string, actor Actor) (*Appointment, error) {
	a, err := s.transition(ctx, id, actor, StatusCancelled, "cancelled")
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventModify, actor.AccountID, "CANCEL", a.ID)
	s.notifier.AppointmentCancelled(noticeFor(a))

	return a, nil
}

func (s *service) Complete(ctx context.Context, id string, actor Actor) (*Appointment, error) {
	a, err := s.transition(ctx, id, actor, StatusCompleted, "completed")
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventModify, actor.AccountID, "COMPLETE", a.ID)
	return a, nil
}

// transition moves a SCHEDULED appointment to a terminal status. It holds the
// slot lock so it serializes with schedule and reschedule on the same day.
func (s *service) transition(ctx context.Context, id string, actor Actor, to Status, action string) (*Appointment, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusScheduled {
		return nil, stateError(action)
	}

	var updated *Appointment
	err = s.repo.WithSlotLock(ctx, current.DoctorID, current.Date, func(tx Repository) error {
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != StatusScheduled {
			return stateError(action)
		}

		a.Status = to
		a.UpdatedAt = s.now().UTC()
		a.UpdatedBy = actor.Name
		if err := tx.Update(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) HasConflict(ctx context.Context, doctorID string, date time.Time, excludeID string) (bool, error) {
	return hasConflict(ctx, s.repo, doctorID, dates.Day(date), excludeID)
}

// hasConflict reports whether any SCHEDULED appointment other than
// excludeID occupies (doctorID, day).
func hasConflict(ctx context.Context, repo Repository, doctorID string, day time.Time, excludeID string) (bool, error) {
	scheduled, err := repo.ListScheduled(ctx, doctorID, day)
	if err != nil {
		return false, err
	}
	for _, a := range scheduled {
		if excludeID == "" || a.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	return s.repo.List(ctx, f)
}

func (s *service) Today(ctx context.Context, doctorID string) ([]*Appointment, error) {
	today := s.today()
	return s.repo.List(ctx, Filter{DoctorID: doctorID, On: &today})
}

// Upcoming lists SCHEDULED appointments from today onward, soonest first.
func (s *service) Upcoming(ctx context.Context, f Filter) ([]*Appointment, error) {
	today := s.today()
	f.From = &today
	f.Status = StatusScheduled
	f.Newest = false
	return s.repo.List(ctx, f)
}

// Past lists a patient's appointments that are before today or already
// closed, newest first.
func (s *service) Past(ctx context.Context, patientID string) ([]*Appointment, error) {
	all, err := s.repo.List(ctx, Filter{PatientID: patientID, Newest: true})
	if err != nil {
		return nil, err
	}

	today := s.today()
	past := make([]*Appointment, 0, len(all))
	for _, a := range all {
		if a.Date.Before(today) || a.Status == StatusCompleted || a.Status == StatusCancelled {
			past = append(past, a)
		}
	}
	return past, nil
}

func (s *service) Delete(ctx context.Context, id string, actor Actor) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, audit.EventDelete, actor.AccountID, "DELETE", id)
	return nil
}

// SendReminders notifies every patient with a SCHEDULED appointment on day
// and returns how many reminders were dispatched.
func (s *service) SendReminders(ctx context.Context, day time.Time) (int, error) {
	d := dates.Day(day)
	appointments, err := s.repo.List(ctx, Filter{On: &d, Status: StatusScheduled})
	if err != nil {
		return 0, fmt.Errorf("failed to load appointments for reminders: %w", err)
	}

	for _, a := range appointments {
		s.notifier.AppointmentReminder(noticeFor(a))
	}
	return len(appointments), nil
}

func noticeFor(a *Appointment) notification.Notice {
	return notification.Notice{
		AppointmentID: a.ID,
		PatientName:   a.PatientName,
		PatientEmail:  a.PatientEmail,
		DoctorName:    a.DoctorName,
		Date:          dates.Format(a.Date),
	}
}

func (s *service) logAudit(ctx context.Context, eventType audit.EventType, actor, action, id string) {
	if s.audit == nil {
		return
	}
	err := s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:   eventType,
		UserID:      actor,
		Action:      action,
		Resource:    "appointment",
		ResourceID:  id,
		Status:      "success",
		Sensitivity: "PHI",
	})
	if err != nil {
		s.logger.Warn("failed to record audit event", zap.String("action", action), zap.Error(err))
	}
}
