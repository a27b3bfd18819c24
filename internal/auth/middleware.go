package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
)

const principalKey = "principal"

// ProfileResolver finds the doctor, nurse or patient profile linked to an
// account. It returns "" when the account has no profile for role.
type ProfileResolver interface {
	ProfileID(ctx context.Context, role Role, accountID string) (string, error)
}

type Middleware struct {
	service  Service
	profiles ProfileResolver
	realm    string
	logger   *zap.Logger
}

func NewMiddleware(service Service, profiles ProfileResolver, realm string, logger *zap.Logger) *Middleware {
	if realm == "" {
		realm = "hospital"
	}
	return &Middleware{
		service:  service,
		profiles: profiles,
		realm:    realm,
		logger:   logger,
	}
}

// Authenticate accepts HTTP Basic credentials or a Bearer token and stores
// the resulting Principal on the context.
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := m.account(c)
		if err != nil {
			if apperr.KindOf(err) != apperr.KindUnauthorized {
				m.logger.Error("authentication failed", zap.Error(err))
			}
			m.unauthorized(c)
			return
		}

		var profileID string
		if m.profiles != nil {
			role := account.PrimaryRole()
			if role != RoleAdmin {
				profileID, err = m.profiles.ProfileID(c.Request.Context(), role, account.ID)
				if err != nil {
					m.logger.Error("failed to resolve profile",
						zap.String("account_id", account.ID),
						zap.Error(err),
					)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error":   "Internal Server Error",
						"message": apperr.Message(err),
					})
					return
				}
			}
		}

		principal := NewPrincipal(account, profileID)
		c.Set(principalKey, principal)
		c.Set("user_id", principal.AccountID)
		c.Set("role", string(principal.Role))

		c.Next()
	}
}

func (m *Middleware) account(c *gin.Context) (*Account, error) {
	header := c.GetHeader("Authorization")
	switch {
	case header == "":
		return nil, ErrInvalidCredentials
	case strings.HasPrefix(header, "Bearer "):
		return m.service.ParseToken(c.Request.Context(), strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
	default:
		email, password, ok := c.Request.BasicAuth()
		if !ok {
			return nil, ErrInvalidCredentials
		}
		return m.service.Authenticate(c.Request.Context(), email, password)
	}
}

func (m *Middleware) unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="`+m.realm+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "Unauthorized",
		"message": "Authentication required",
	})
}

// Require aborts with 403 unless the principal holds at least one of perms.
func (m *Middleware) Require(perms ...Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := PrincipalFrom(c)
		if principal == nil {
			m.unauthorized(c)
			return
		}
		if !principal.CanAny(perms...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "Access denied",
			})
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the caller set by Authenticate, or nil.
func PrincipalFrom(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

// IsAuthError reports whether err should surface as a 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInvalidToken)
}
