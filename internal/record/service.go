package record

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/audit"
	"github.com/mesikahq/hospital-api/internal/dates"
	"github.com/mesikahq/hospital-api/internal/doctor"
	"github.com/mesikahq/hospital-api/internal/patient"
)

var (
	ErrRecordNotFound = apperr.NotFound("Medical record not found")
	ErrInvalidStatus  = apperr.Validation("Status must be one of ACTIVE, FOLLOW_UP, RESOLVED, ARCHIVED")
	ErrRecordInUse    = apperr.Validation("Medical record has attached documents or metrics")
)

type PatientFinder interface {
	Get(ctx context.Context, id string) (*patient.Patient, error)
}

type DoctorFinder interface {
	Get(ctx context.Context, id string) (*doctor.Doctor, error)
}

type Service interface {
	Create(ctx context.Context, in CreateInput, actor string) (*MedicalRecord, error)
	Get(ctx context.Context, id string) (*MedicalRecord, error)
	List(ctx context.Context, f Filter) ([]*MedicalRecord, error)
	Update(ctx context.Context, id string, in UpdateInput, actor string) (*MedicalRecord, error)
	Delete(ctx context.Context, id, actor string) error
}

type service struct {
	repo     Repository
	patients PatientFinder
	doctors  DoctorFinder
	audit    audit.Service
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientFinder, doctors DoctorFinder, auditSvc audit.Service, logger *zap.Logger) Service {
	return &service{
		repo:     repo,
		patients: patients,
		doctors:  doctors,
		audit:    auditSvc,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *service) Create(ctx context.Context, in CreateInput, actor string) (*MedicalRecord, error) {
	status := StatusActive
	if strings.TrimSpace(in.Status) != "" {
		st, err := ParseStatus(in.Status)
		if err != nil {
			return nil, err
		}
		status = st
	}

	p, err := s.patients.Get(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	d, err := s.doctors.Get(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}

	visit := in.VisitDate
	if visit.IsZero() {
		visit = s.now()
	}

	rec := &MedicalRecord{
		ID:           uuid.New().String(),
		PatientID:    p.ID,
		PatientName:  p.Name,
		DoctorID:     d.ID,
		DoctorName:   d.Name,
		VisitDate:    dates.Day(visit),
		Diagnosis:    strings.TrimSpace(in.Diagnosis),
		Prescription: strings.TrimSpace(in.Prescription),
		Status:       status,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	// Log audit event
	s.logAudit(ctx, audit.EventModify, actor, "CREATE", rec.ID)

	return rec, nil
}

func (s *service) Get(ctx context.Context, id string) (*MedicalRecord, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, f Filter) ([]*MedicalRecord, error) {
	return s.repo.List(ctx, f)
}

func (s *service) Update(ctx context.Context, id string, in UpdateInput, actor string) (*MedicalRecord, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Status != nil {
		st, err := ParseStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		rec.Status = st
	}
	if in.VisitDate != nil {
		rec.VisitDate = dates.Day(*in.VisitDate)
	}
	if in.Diagnosis != nil {
		rec.Diagnosis = strings.TrimSpace(*in.Diagnosis)
	}
	if in.Prescription != nil {
		rec.Prescription = strings.TrimSpace(*in.Prescription)
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	// Log audit event
	s.logAudit(ctx, audit.EventModify, actor, "UPDATE", rec.ID)

	return rec, nil
}

func (s *service) Delete(ctx context.Context, id, actor string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, audit.EventDelete, actor, "DELETE", id)
	return nil
}

func (s *service) logAudit(ctx context.Context, eventType audit.EventType, actor, action, id string) {
	if s.audit == nil {
		return
	}
	err := s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:   eventType,
		UserID:      actor,
		Action:      action,
		Resource:    "medical_record",
		ResourceID:  id,
		Status:      "success",
		Sensitivity: "PHI",
	})
	if err != nil {
		s.logger.Warn("failed to record audit event", zap.String("action", action), zap.Error(err))
	}
}
