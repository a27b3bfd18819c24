package nurse

import (
	"context"

	"github.com/google/uuid"

	"github.com/mesikahq/hospital-api/internal/apperr"
)

var (
	ErrNurseNotFound     = apperr.NotFound("Nurse not found")
	ErrInvalidExperience = apperr.Validation("Years of experience cannot be negative")
	ErrProfileExists     = apperr.Validation("Nurse profile already exists for this account")
)

type Service interface {
	Create(ctx context.Context, accountID string, profile Profile) (*Nurse, error)
	Get(ctx context.Context, id string) (*Nurse, error)
	GetByAccount(ctx context.Context, accountID string) (*Nurse, error)
	List(ctx context.Context) ([]*Nurse, error)
	Update(ctx context.Context, id string, profile Profile) (*Nurse, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, accountID string, profile Profile) (*Nurse, error) {
	n := &Nurse{ID: uuid.New().String(), AccountID: accountID}
	profile.apply(n)
	if n.YearsOfExperience < 0 {
		return nil, ErrInvalidExperience
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, n.ID)
}

func (s *service) Get(ctx context.Context, id string) (*Nurse, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByAccount(ctx context.Context, accountID string) (*Nurse, error) {
	return s.repo.GetByAccountID(ctx, accountID)
}

func (s *service) List(ctx context.Context) ([]*Nurse, error) {
	return s.repo.List(ctx)
}

func (s *service) Update(ctx context.Context, id string, profile Profile) (*Nurse, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	profile.apply(n)
	if n.YearsOfExperience < 0 {
		return nil, ErrInvalidExperience
	}

	if err := s.repo.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}
