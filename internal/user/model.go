package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/laofi/internal/apperr"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(s)) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// User is a registered account. PasswordHash never leaves the process.
type User struct {
	ID           uuid.UUID `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Principal is the authenticated caller of a request.
type Principal struct {
	ID    uuid.UUID `json:"_id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Patch carries the fields an admin may change on an account. Nil fields are left untouched.
type Patch struct {
	Name  *string
	Email *string
	Role  *Role
}

var (
	ErrUserNotFound       = fmt.Errorf("user %w", apperr.ErrNotFound)
	ErrEmailExists        = fmt.Errorf("%w: email already registered", apperr.ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthenticated)
	ErrInvalidRole        = apperr.Validation("invalid role")
	ErrEmptyPassword      = apperr.Validation("password cannot be empty")
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
