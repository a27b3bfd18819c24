package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/auth"
	"github.com/mesikahq/hospital-api/internal/doctor"
	"github.com/mesikahq/hospital-api/internal/nurse"
	"github.com/mesikahq/hospital-api/internal/patient"
)

// profileFields are the role profile fields accepted at registration and
// on profile updates. Each role ignores the fields it does not have.
type profileFields struct {
	Specialization    *string  `json:"specialization"`
	YearsOfExperience *int     `json:"yearsOfExperience"`
	Charges           *float64 `json:"charges"`
	PhoneNumber       *string  `json:"phoneNumber"`
	DateOfBirth       *string  `json:"dateOfBirth"`
	Gender            *string  `json:"gender"`
	Address           *string  `json:"address"`
	BloodGroup        *string  `json:"bloodGroup"`
	EmergencyContact  *string  `json:"emergencyContact"`
}

func (f profileFields) doctor() doctor.Profile {
	return doctor.Profile{
		Specialization:    f.Specialization,
		YearsOfExperience: f.YearsOfExperience,
		Charges:           f.Charges,
		PhoneNumber:       f.PhoneNumber,
	}
}

func (f profileFields) nurse() nurse.Profile {
	return nurse.Profile{
		YearsOfExperience: f.YearsOfExperience,
		PhoneNumber:       f.PhoneNumber,
	}
}

func (f profileFields) patient() patient.Profile {
	return patient.Profile{
		DateOfBirth:      f.DateOfBirth,
		Gender:           f.Gender,
		PhoneNumber:      f.PhoneNumber,
		Address:          f.Address,
		BloodGroup:       f.BloodGroup,
		EmergencyContact: f.EmergencyContact,
	}
}

type registerRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	profileFields
}

// Register creates an account and its role profile. The account is removed
// again when the profile cannot be created.
func (h *Handler) Register(c *gin.Context) {
	role, err := auth.ParseRole(c.Param("role"))
	if err != nil || role == auth.RoleAdmin {
		h.respondError(c, auth.ErrInvalidRole)
		return
	}

	var req registerRequest
	if !h.bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	account, err := h.svc.Auth.Register(ctx, auth.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            role,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	profile, err := h.createProfile(ctx, role, account.ID, req.profileFields)
	if err != nil {
		if delErr := h.svc.Auth.DeleteAccount(ctx, account.ID, account.ID); delErr != nil {
			h.logger.Error("Failed to roll back account after profile error",
				zap.String("account_id", account.ID),
				zap.Error(delErr),
			)
		}
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, "User registered successfully!", gin.H{
		"user":    account,
		"profile": profile,
	})
}

func (h *Handler) createProfile(ctx context.Context, role auth.Role, accountID string, f profileFields) (interface{}, error) {
	switch role {
	case auth.RoleDoctor:
		return h.svc.Doctors.Create(ctx, accountID, f.doctor())
	case auth.RoleNurse:
		return h.svc.Nurses.Create(ctx, accountID, f.nurse())
	case auth.RolePatient:
		return h.svc.Patients.Create(ctx, accountID, f.patient())
	}
	return nil, auth.ErrInvalidRole
}

// IssueToken exchanges the Basic credentials of the current request for a
// bearer token.
func (h *Handler) IssueToken(c *gin.Context) {
	p := principal(c)
	account, err := h.svc.Auth.GetAccount(c.Request.Context(), p.AccountID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	token, expiresAt, err := h.svc.Auth.IssueToken(account)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"tokenType": "Bearer",
		"expiresAt": expiresAt,
	})
}

var dashboards = map[auth.Role]string{
	auth.RoleAdmin:   "/api/admin/dashboard",
	auth.RoleDoctor:  "/api/doctors/appointments",
	auth.RoleNurse:   "/api/nurses/appointments",
	auth.RolePatient: "/api/patients/dashboard",
}

// Dashboard points the caller at the dashboard for their role.
func (h *Handler) Dashboard(c *gin.Context) {
	p := principal(c)
	c.JSON(http.StatusOK, gin.H{
		"role":      p.Role,
		"dashboard": dashboards[p.Role],
	})
}

func (h *Handler) Home(c *gin.Context) {
	p := principal(c)
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome, " + p.Name,
		"name":    p.Name,
		"email":   p.Email,
		"role":    p.Role,
	})
}

// User administration

type updateUserRequest struct {
	Name     *string  `json:"name"`
	Email    *string  `json:"email" binding:"omitempty,email"`
	Password *string  `json:"password" binding:"omitempty,min=6"`
	Roles    []string `json:"roles"`
}

func (h *Handler) ListUsers(c *gin.Context) {
	accounts, err := h.svc.Auth.ListAccounts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *Handler) GetUser(c *gin.Context) {
	account, err := h.svc.Auth.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if !h.bind(c, &req) {
		return
	}

	in := auth.UpdateInput{Name: req.Name, Email: req.Email, Password: req.Password}
	for _, r := range req.Roles {
		role, err := auth.ParseRole(r)
		if err != nil {
			h.respondError(c, auth.ErrInvalidRole)
			return
		}
		in.Roles = append(in.Roles, role)
	}

	account, err := h.svc.Auth.UpdateAccount(c.Request.Context(), c.Param("id"), in, principal(c).AccountID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "User updated successfully", gin.H{"user": account})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	p := principal(c)
	if c.Param("id") == p.AccountID {
		h.respondError(c, apperr.Validation("You cannot delete your own account"))
		return
	}
	if err := h.svc.Auth.DeleteAccount(c.Request.Context(), c.Param("id"), p.AccountID); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "User deleted successfully", nil)
}

func (h *Handler) CurrentUser(c *gin.Context) {
	account, err := h.svc.Auth.GetAccount(c.Request.Context(), principal(c).AccountID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=NewPassword"`
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !h.bind(c, &req) {
		return
	}

	err := h.svc.Auth.ChangePassword(c.Request.Context(), principal(c).AccountID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if auth.IsAuthError(err) {
			h.respondError(c, apperr.Validation("Current password is incorrect"))
			return
		}
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Password changed successfully", nil)
}

// Current profile

type updateProfileRequest struct {
	Name *string `json:"name"`
	profileFields
}

// Profile returns the caller's account and role profile.
func (h *Handler) Profile(c *gin.Context) {
	p := principal(c)
	ctx := c.Request.Context()

	account, err := h.svc.Auth.GetAccount(ctx, p.AccountID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	profile, err := h.roleProfile(ctx, p)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": account, "profile": profile})
}

func (h *Handler) roleProfile(ctx context.Context, p *auth.Principal) (interface{}, error) {
	if p.ProfileID == "" {
		return nil, nil
	}
	switch p.Role {
	case auth.RoleDoctor:
		return h.svc.Doctors.Get(ctx, p.ProfileID)
	case auth.RoleNurse:
		return h.svc.Nurses.Get(ctx, p.ProfileID)
	case auth.RolePatient:
		return h.svc.Patients.Get(ctx, p.ProfileID)
	}
	return nil, nil
}

// UpdateProfile changes the caller's name and role profile fields.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !h.bind(c, &req) {
		return
	}

	p := principal(c)
	ctx := c.Request.Context()

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			h.respondError(c, apperr.Validation("Name cannot be empty"))
			return
		}
		if _, err := h.svc.Auth.UpdateAccount(ctx, p.AccountID, auth.UpdateInput{Name: req.Name}, p.AccountID); err != nil {
			h.respondError(c, err)
			return
		}
	}

	var (
		profile interface{}
		err     error
	)
	if p.ProfileID != "" {
		switch p.Role {
		case auth.RoleDoctor:
			profile, err = h.svc.Doctors.Update(ctx, p.ProfileID, req.doctor(), p.AccountID)
		case auth.RoleNurse:
			profile, err = h.svc.Nurses.Update(ctx, p.ProfileID, req.nurse())
		case auth.RolePatient:
			profile, err = h.svc.Patients.Update(ctx, p.ProfileID, req.patient(), p.AccountID)
		}
		if err != nil {
			h.respondError(c, err)
			return
		}
	}

	respondOK(c, http.StatusOK, "Profile updated successfully", gin.H{"profile": profile})
}
