package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticProfiles map[string]string

func (p staticProfiles) ProfileID(_ context.Context, _ Role, accountID string) (string, error) {
	return p[accountID], nil
}

func newTestRouter(t *testing.T) (*gin.Engine, Service, *Account) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _ := newTestService(t, nil)
	account, err := svc.CreateAccount(context.Background(), "pat@example.com", "secret1", "Yaw", []Role{RolePatient})
	require.NoError(t, err)

	mw := NewMiddleware(svc, staticProfiles{account.ID: "patient-1"}, "hospital", zap.NewNop())

	r := gin.New()
	api := r.Group("/api", mw.Authenticate())
	api.GET("/me", func(c *gin.Context) {
		p := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"role": p.Role, "profile": p.ProfileID, "user_id": c.GetString("user_id")})
	})
	api.GET("/admin", mw.Require(PermUserManage), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, svc, account
}

func TestAuthenticate_Basic(t *testing.T) {
	r, _, account := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.SetBasicAuth("pat@example.com", "secret1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"profile":"patient-1"`)
	assert.Contains(t, w.Body.String(), `"role":"PATIENT"`)
	assert.Contains(t, w.Body.String(), account.ID)
}

func TestAuthenticate_Bearer(t *testing.T) {
	r, svc, account := newTestRouter(t)

	token, _, err := svc.IssueToken(account)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthenticate_Rejects(t *testing.T) {
	r, _, _ := newTestRouter(t)

	tests := []struct {
		name  string
		setup func(*http.Request)
	}{
		{name: "no header", setup: func(*http.Request) {}},
		{name: "wrong password", setup: func(req *http.Request) { req.SetBasicAuth("pat@example.com", "nope") }},
		{name: "garbage bearer", setup: func(req *http.Request) { req.Header.Set("Authorization", "Bearer abc.def.ghi") }},
		{name: "unknown scheme", setup: func(req *http.Request) { req.Header.Set("Authorization", "Digest x") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, `Basic realm="hospital"`, w.Header().Get("WWW-Authenticate"))
			assert.JSONEq(t, `{"error":"Unauthorized","message":"Authentication required"}`, w.Body.String())
		})
	}
}

func TestRequire_Forbidden(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
	req.SetBasicAuth("pat@example.com", "secret1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
