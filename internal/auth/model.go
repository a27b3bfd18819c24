package auth

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleDoctor  Role = "DOCTOR"
	RoleNurse   Role = "NURSE"
	RolePatient Role = "PATIENT"
)

// rolePrecedence orders roles when an account holds more than one.
var rolePrecedence = []Role{RoleAdmin, RoleDoctor, RoleNurse, RolePatient}

func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "ROLE_"))
	for _, known := range rolePrecedence {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (a *Account) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PrimaryRole is the highest-precedence role the account holds.
func (a *Account) PrimaryRole() Role {
	for _, r := range rolePrecedence {
		if a.HasRole(r) {
			return r
		}
	}
	return ""
}

type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	Role            Role
}

type UpdateInput struct {
	Name     *string
	Email    *string
	Password *string
	Roles    []Role
}
