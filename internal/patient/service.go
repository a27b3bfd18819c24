package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/audit"
	"github.com/mesikahq/hospital-api/internal/dates"
)

var (
	ErrPatientNotFound   = apperr.NotFound("Patient not found")
	ErrFutureDateOfBirth = apperr.Validation("Date of birth cannot be in the future")
	ErrProfileExists     = apperr.Validation("Patient profile already exists for this account")
	ErrPatientInUse      = apperr.Validation("Patient has associated records and cannot be deleted")
)

type Service interface {
	Create(ctx context.Context, accountID string, profile Profile) (*Patient, error)
	Get(ctx context.Context, id string) (*Patient, error)
	GetByAccount(ctx context.Context, accountID string) (*Patient, error)
	List(ctx context.Context) ([]*Patient, error)
	Update(ctx context.Context, id string, profile Profile, actor string) (*Patient, error)
	Delete(ctx context.Context, id, actor string) error
}

type service struct {
	repo   Repository
	audit  audit.Service
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, auditSvc audit.Service, logger *zap.Logger) Service {
	return &service{
		repo:   repo,
		audit:  auditSvc,
		logger: logger,
		now:    time.Now,
	}
}

func (s *service) Create(ctx context.Context, accountID string, profile Profile) (*Patient, error) {
	p := &Patient{
		ID:        uuid.New().String(),
		AccountID: accountID,
	}
	if err := profile.apply(p, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	return s.Get(ctx, p.ID)
}

func (s *service) Get(ctx context.Context, id string) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withAge(p), nil
}

func (s *service) GetByAccount(ctx context.Context, accountID string) (*Patient, error) {
	p, err := s.repo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.withAge(p), nil
}

func (s *service) List(ctx context.Context) ([]*Patient, error) {
	patients, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range patients {
		s.withAge(p)
	}
	return patients, nil
}

func (s *service) Update(ctx context.Context, id string, profile Profile, actor string) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := profile.apply(p, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	// Log audit event
	s.logAudit(ctx, audit.EventModify, actor, "UPDATE", p.ID)

	return s.withAge(p), nil
}

func (s *service) Delete(ctx context.Context, id, actor string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	// Log audit event
	s.logAudit(ctx, audit.EventDelete, actor, "DELETE", id)

	return nil
}

func (s *service) withAge(p *Patient) *Patient {
	p.Age = 0
	if p.DateOfBirth != nil {
		p.Age = dates.Age(*p.DateOfBirth, s.now())
	}
	return p
}

func (s *service) logAudit(ctx context.Context, eventType audit.EventType, actor, action, id string) {
	if s.audit == nil {
		return
	}
	err := s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:   eventType,
		UserID:      actor,
		Action:      action,
		Resource:    "patient",
		ResourceID:  id,
		Status:      "success",
		Sensitivity: "PHI",
	})
	if err != nil {
		s.logger.Warn("failed to record audit event", zap.String("action", action), zap.Error(err))
	}
}
