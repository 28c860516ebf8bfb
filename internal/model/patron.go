package model

import (
	"fmt"
	"time"
)

// Patron is any actor interacting with the library, member or staff.
type Patron struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name,omitempty"`
	Email        string     `json:"email,omitempty"`
	Role         Role       `json:"role"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Patron statuses.
const (
	PatronStatusPending   = "pending"
	PatronStatusActive    = "active"
	PatronStatusSuspended = "suspended"
)

// Actor is the authenticated identity a circulation operation runs as.
type Actor struct {
	ID   int64
	Role Role
}

// SystemActor is used by background jobs such as the overdue sweep.
var SystemActor = Actor{ID: 0, Role: RoleSuperadmin}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks a new password against the password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
