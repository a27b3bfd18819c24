package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/appointment"
	"github.com/mesikahq/hospital-api/internal/audit"
	"github.com/mesikahq/hospital-api/internal/auth"
	"github.com/mesikahq/hospital-api/internal/dates"
	"github.com/mesikahq/hospital-api/internal/doctor"
	"github.com/mesikahq/hospital-api/internal/document"
	"github.com/mesikahq/hospital-api/internal/metric"
	"github.com/mesikahq/hospital-api/internal/nurse"
	"github.com/mesikahq/hospital-api/internal/patient"
	"github.com/mesikahq/hospital-api/internal/record"
	"github.com/mesikahq/hospital-api/internal/stats"
)

// StatisticsProvider is satisfied by *stats.Aggregator.
type StatisticsProvider interface {
	AdminDashboard(ctx context.Context) (*stats.Statistics, error)
}

// Services bundles the domain services the handlers call.
type Services struct {
	Auth         auth.Service
	Doctors      doctor.Service
	Nurses       nurse.Service
	Patients     patient.Service
	Appointments appointment.Service
	Records      record.Service
	Metrics      metric.Service
	Documents    document.Service
	Stats        StatisticsProvider
	Audit        audit.Service
}

type Handler struct {
	svc           Services
	maxUploadSize int64
	logger        *zap.Logger
	now           func() time.Time
}

func NewHandler(svc Services, maxUploadSize int64, logger *zap.Logger) *Handler {
	useJSONFieldNames()
	return &Handler{
		svc:           svc,
		maxUploadSize: maxUploadSize,
		logger:        logger,
		now:           time.Now,
	}
}

var (
	errInvalidBody = apperr.Validation("Invalid request body")
	errForbidden   = apperr.Forbidden("Access denied")
	errNoProfile   = apperr.NotFound("Profile not found for the current user")
)

// respondError maps err onto the JSON error envelope. Unclassified errors
// are logged and answered with a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var status int
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	default:
		if errors.Is(err, audit.ErrSearchUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Audit search is not configured"})
			return
		}
		h.logger.Error("Request failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"success": false, "message": apperr.Message(err)})
}

// respondOK answers a successful mutation.
func respondOK(c *gin.Context, status int, message string, extra gin.H) {
	body := gin.H{"success": true, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func principal(c *gin.Context) *auth.Principal {
	return auth.PrincipalFrom(c)
}

func actorOf(p *auth.Principal) appointment.Actor {
	return appointment.Actor{AccountID: p.AccountID, Name: p.Name}
}

// ownProfile returns the caller's role profile id for role, or an error when
// the caller is not that role or has no profile.
func ownProfile(p *auth.Principal, role auth.Role) (string, error) {
	if !p.Is(role) {
		return "", errForbidden
	}
	if p.ProfileID == "" {
		return "", errNoProfile
	}
	return p.ProfileID, nil
}

// canSeeAppointment allows staff with the any-grant, the booked doctor and
// the booked patient.
func canSeeAppointment(p *auth.Principal, a *appointment.Appointment) bool {
	if p.Can(auth.PermAppointmentViewAny) {
		return true
	}
	return ownsAppointment(p, a)
}

func ownsAppointment(p *auth.Principal, a *appointment.Appointment) bool {
	if p.ProfileID == "" {
		return false
	}
	switch p.Role {
	case auth.RoleDoctor:
		return a.DoctorID == p.ProfileID
	case auth.RolePatient:
		return a.PatientID == p.ProfileID
	}
	return false
}

// parseDate reads a required YYYY-MM-DD value.
func parseDate(field, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, apperr.Validation(field + " is required")
	}
	t, err := dates.Parse(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, apperr.Wrap(err, apperr.KindValidation, field+" must be formatted as YYYY-MM-DD")
	}
	return t, nil
}

// dateQuery reads an optional YYYY-MM-DD query parameter.
func dateQuery(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := parseDate(key, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func intQuery(c *gin.Context, key string, def, max int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
