// Package models defines data models for the account service.
package models

import (
	"fmt"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

// ParseRole validates a raw role string against the closed set.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return Role(raw), nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Account represents an account in the system. The password hash and
// reset-token fields never serialize to JSON.
type Account struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Photo               string     `json:"photo"`
	Password            []byte     `json:"-"`
	Role                Role       `json:"role"`
	PasswordChangedAt   *time.Time `json:"-"`
	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	Active              bool       `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// PasswordChangedAfter reports whether the password was changed at or
// after the given instant. Session tokens issued before the most recent
// password change are stale.
func (a Account) PasswordChangedAfter(t time.Time) bool {
	if a.PasswordChangedAt == nil {
		return false
	}
	return !a.PasswordChangedAt.Before(t)
}

type NewAccount struct {
	Name     string
	Email    string
	Password []byte
	Role     Role
}
