package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/audit"
	"github.com/mesikahq/hospital-api/internal/cache"
)

var (
	ErrInvalidCredentials = apperr.Unauthorized("invalid credentials")
	ErrInvalidToken       = apperr.Unauthorized("invalid token")
	ErrAccountNotFound    = apperr.NotFound("User not found")
	ErrEmailInUse         = apperr.Validation("Email already in use!")
	ErrPasswordMismatch   = apperr.Validation("Passwords do not match")
	ErrWeakPassword       = apperr.Validation("Password must be at least 6 characters")
	ErrMissingFields      = apperr.Validation("Name, email and password are required")
	ErrInvalidRole        = apperr.Validation("Invalid role")
	ErrInvalidEmail       = apperr.Validation("Email must be a valid email address")
	ErrAccountInUse       = apperr.Validation("User has associated records and cannot be deleted")
)

const minPasswordLength = 6

var validate = validator.New()

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*Account, error)
	CreateAccount(ctx context.Context, email, password, name string, roles []Role) (*Account, error)
	Authenticate(ctx context.Context, email, password string) (*Account, error)
	IssueToken(account *Account) (string, time.Time, error)
	ParseToken(ctx context.Context, token string) (*Account, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
	UpdateAccount(ctx context.Context, id string, in UpdateInput, actor string) (*Account, error)
	ChangePassword(ctx context.Context, id, current, next string) error
	DeleteAccount(ctx context.Context, id, actor string) error
}

type AuthServiceConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
	CacheTTL    time.Duration
	BcryptCost  int
}

type service struct {
	repo   Repository
	audit  audit.Service
	cache  *cache.Cache
	tokens *tokenIssuer
	// credSecret keys the credential cache entries.
	credSecret []byte
	ttl        time.Duration
	cost       int
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(repo Repository, auditSvc audit.Service, credCache *cache.Cache, cfg AuthServiceConfig, logger *zap.Logger) Service {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &service{
		repo:       repo,
		audit:      auditSvc,
		cache:      credCache,
		tokens:     &tokenIssuer{secret: []byte(cfg.JWTSecret), expiry: cfg.TokenExpiry, now: time.Now},
		ttl:        cfg.CacheTTL,
		credSecret: []byte(cfg.JWTSecret),
		cost:       cost,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	switch in.Role {
	case RoleDoctor, RoleNurse, RolePatient:
	default:
		return nil, ErrInvalidRole
	}

	return s.CreateAccount(ctx, in.Email, in.Password, in.Name, []Role{in.Role})
}

func (s *service) CreateAccount(ctx context.Context, email, password, name string, roles []Role) (*Account, error) {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	if len(roles) == 0 {
		return nil, ErrInvalidRole
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailInUse
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	account := &Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(name),
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventModify, account.ID, "REGISTER", account.ID, audit.Details(map[string]interface{}{
		"email": account.Email,
		"roles": account.Roles,
	}))

	return account, nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	key := s.credentialKey(email, password)

	var cached Account
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !cache.IsMiss(err) {
		s.logger.Warn("credential cache read failed", zap.Error(err))
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.logAudit(ctx, audit.EventLogin, account.ID, "LOGIN", account.ID, audit.Details(map[string]string{"reason": "invalid_password"}))
		return nil, ErrInvalidCredentials
	}

	if err := s.cache.Set(ctx, key, account, s.ttl); err != nil {
		s.logger.Warn("credential cache write failed", zap.Error(err))
	}

	return account, nil
}

func (s *service) IssueToken(account *Account) (string, time.Time, error) {
	return s.tokens.issue(account)
}

func (s *service) ParseToken(ctx context.Context, token string) (*Account, error) {
	claims, err := s.tokens.parse(token)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return account, nil
}

func (s *service) GetAccount(ctx context.Context, id string) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListAccounts(ctx context.Context) ([]*Account, error) {
	return s.repo.List(ctx)
}

func (s *service) UpdateAccount(ctx context.Context, id string, in UpdateInput, actor string) (*Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previousEmail := account.Email

	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		account.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" && !strings.EqualFold(*in.Email, account.Email) {
		email := strings.TrimSpace(*in.Email)
		if !validEmail(email) {
			return nil, ErrInvalidEmail
		}
		if other, err := s.repo.GetByEmail(ctx, email); err == nil && other.ID != account.ID {
			return nil, ErrEmailInUse
		}
		account.Email = email
	}
	if in.Password != nil && *in.Password != "" {
		if len(*in.Password) < minPasswordLength {
			return nil, ErrWeakPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		account.PasswordHash = string(hash)
	}
	if len(in.Roles) > 0 {
		account.Roles = in.Roles
	}
	account.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}

	s.forget(ctx, previousEmail, account.Email)
	s.logAudit(ctx, audit.EventModify, actor, "UPDATE_USER", account.ID, nil)

	return account, nil
}

func (s *service) ChangePassword(ctx context.Context, id, current, next string) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(current)); err != nil {
		return apperr.Validation("Current password is incorrect")
	}
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	account.PasswordHash = string(hash)
	account.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, account); err != nil {
		return err
	}

	s.forget(ctx, account.Email)
	s.logAudit(ctx, audit.EventModify, account.ID, "CHANGE_PASSWORD", account.ID, nil)
	return nil
}

func (s *service) DeleteAccount(ctx context.Context, id, actor string) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.forget(ctx, account.Email)
	s.logAudit(ctx, audit.EventDelete, actor, "DELETE_USER", id, nil)
	return nil
}

// forget drops cached credential verifications for the given emails.
func (s *service) forget(ctx context.Context, emails ...string) {
	for _, email := range emails {
		if err := s.cache.DeletePattern(ctx, s.emailKeyPrefix(email)+"*"); err != nil {
			s.logger.Warn("credential cache invalidation failed", zap.Error(err))
		}
	}
}

func (s *service) logAudit(ctx context.Context, eventType audit.EventType, userID, action, resourceID string, details []byte) {
	if s.audit == nil {
		return
	}
	err := s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:   eventType,
		UserID:      userID,
		Action:      action,
		Resource:    "account",
		ResourceID:  resourceID,
		Status:      "success",
		Sensitivity: "HIGH",
		Details:     details,
	})
	if err != nil {
		s.logger.Warn("failed to record audit event", zap.String("action", action), zap.Error(err))
	}
}

func (s *service) mac(parts ...string) []byte {
	h := hmac.New(sha256.New, s.credSecret)
	for i, part := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(part))
	}
	return h.Sum(nil)
}

func (s *service) emailKeyPrefix(email string) string {
	return "cred:" + hex.EncodeToString(s.mac(normalizeEmail(email))[:8]) + ":"
}

// credentialKey is an HMAC of the email/password pair under the server
// secret.
func (s *service) credentialKey(email, password string) string {
	return s.emailKeyPrefix(email) + hex.EncodeToString(s.mac(normalizeEmail(email), password))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
