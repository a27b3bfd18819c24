package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/mesikahq/hospital-api/internal/audit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := perform(r, http.MethodGet, "/", map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "abc", w.Body.String())

	w = perform(r, http.MethodGet, "/", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeadersMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://portal.example.org"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", map[string]string{"Origin": "https://portal.example.org"})
	assert.Equal(t, "https://portal.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodGet, "/", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodOptions, "/", map[string]string{"Origin": "https://portal.example.org"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(rate.Limit(0.001), 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", nil).Code)

	w := perform(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Too many requests"}`, w.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := gin.New()
	r.Use(RequestIDMiddleware(), RecoveryMiddleware(zap.New(core)))
	r.GET("/", func(c *gin.Context) { panic("nil map") })

	w := perform(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"An unexpected error occurred"}`, w.Body.String())
	require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(LoggerMiddleware(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	perform(r, http.MethodGet, "/ping", nil)

	entries := logs.FilterMessage("Request processed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusTeapot), entries[0].ContextMap()["status"])
	assert.Equal(t, "/ping", entries[0].ContextMap()["path"])
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestLimiterStore_ForgetsIdleClients(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	s := newLimiterStore(rate.Limit(0.001), 1)
	s.now = func() time.Time { return now }

	assert.True(t, s.allow("10.0.0.1"))
	assert.False(t, s.allow("10.0.0.1"))
	assert.True(t, s.allow("10.0.0.2"))

	now = now.Add(limiterIdleTTL + time.Minute)
	assert.True(t, s.allow("10.0.0.2"))
	assert.Len(t, s.visitors, 1)

	// a forgotten client starts with a full bucket
	assert.True(t, s.allow("10.0.0.1"))
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.AuditEvent
	err    error
}

func (a *recordingAudit) LogEvent(_ context.Context, e *audit.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, *e)
	return a.err
}

func (a *recordingAudit) Search(context.Context, audit.Query) (*audit.Page, error) {
	return nil, audit.ErrSearchUnavailable
}

func TestAccessLog(t *testing.T) {
	events := &recordingAudit{}
	access := NewAccessLog(events, zap.NewNop())

	r := gin.New()
	r.Use(RequestIDMiddleware(), access.Handler())
	r.GET("/api/patients/:id", func(c *gin.Context) {
		c.Set("user_id", "acc-1")
		c.Status(http.StatusNotFound)
	})

	perform(r, http.MethodGet, "/api/patients/p1", map[string]string{"X-Request-ID": "req-1"})
	access.Wait()

	require.Len(t, events.events, 1)
	e := events.events[0]
	assert.Equal(t, audit.EventAccess, e.EventType)
	assert.Equal(t, "acc-1", e.UserID)
	assert.Equal(t, "/api/patients/:id", e.Resource)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "failure", e.Status)

	var details map[string]string
	require.NoError(t, json.Unmarshal(e.Details, &details))
	assert.Equal(t, "/api/patients/p1", details["path"])
	assert.Equal(t, "404", details["status"])
}

func TestAccessLog_FailuresAreLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	access := NewAccessLog(&recordingAudit{err: errors.New("index unavailable")}, zap.New(core))

	r := gin.New()
	r.Use(access.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", nil)
	access.Wait()

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("Failed to record access event").Len())
}
