package doctor

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/audit"
)

var (
	ErrDoctorNotFound    = apperr.NotFound("Doctor not found")
	ErrInvalidDoctorData = apperr.Validation("invalid doctor data")
	ErrInvalidExperience = apperr.Validation("Years of experience cannot be negative")
	ErrInvalidCharges    = apperr.Validation("Charges cannot be negative")
	ErrProfileExists     = apperr.Validation("Doctor profile already exists for this account")
	ErrDoctorInUse       = apperr.Validation("Doctor has associated records and cannot be deleted")
)

type Service interface {
	Create(ctx context.Context, accountID string, profile Profile) (*Doctor, error)
	Get(ctx context.Context, id string) (*Doctor, error)
	GetByAccount(ctx context.Context, accountID string) (*Doctor, error)
	List(ctx context.Context) ([]*Doctor, error)
	Update(ctx context.Context, id string, profile Profile, actor string) (*Doctor, error)
	Delete(ctx context.Context, id, actor string) error
}

type service struct {
	repo   Repository
	audit  audit.Service
	logger *zap.Logger
}

func NewService(repo Repository, auditSvc audit.Service, logger *zap.Logger) Service {
	return &service{
		repo:   repo,
		audit:  auditSvc,
		logger: logger,
	}
}

func (s *service) Create(ctx context.Context, accountID string, profile Profile) (*Doctor, error) {
	d := &Doctor{
		ID:        uuid.New().String(),
		AccountID: accountID,
	}
	profile.apply(d)
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	// Re-read to pick up the account's name and email.
	return s.repo.GetByID(ctx, d.ID)
}

func (s *service) Get(ctx context.Context, id string) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByAccount(ctx context.Context, accountID string) (*Doctor, error) {
	return s.repo.GetByAccountID(ctx, accountID)
}

func (s *service) List(ctx context.Context) ([]*Doctor, error) {
	return s.repo.List(ctx)
}

func (s *service) Update(ctx context.Context, id string, profile Profile, actor string) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	profile.apply(d)
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventModify, actor, "UPDATE", d.ID)
	return d, nil
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
		Resource:    "doctor",
		ResourceID:  id,
		Status:      "success",
		Sensitivity: "LOW",
	})
	if err != nil {
		s.logger.Warn("failed to record audit event", zap.String("action", action), zap.Error(err))
	}
}
