// Package user implements accounts, registration, and login.
package user

import (
	"time"

	"github.com/caretrack/go-caretrack/internal/auth"
)

// User is a login account. The profile (patient or doctor) lives in
// its own table and is linked by user id.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
