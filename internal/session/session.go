package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/roach88/backoffice/internal/record"
)

// State is the tri-state the rest of the application is gated on.
type State int

const (
	Unresolved State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// AdminRole is the display role for the backend's "superadmin".
const AdminRole = "Admin"

// NormalizeRole maps the raw backend role to the displayed role.
// Only "superadmin" is renamed; everything else passes through unchanged.
func NormalizeRole(raw string) string {
	if raw == "superadmin" {
		return AdminRole
	}
	return raw
}

// Identity is the verified operator.
type Identity struct {
	Key   string `json:"key"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is an identity plus when it was last confirmed by the backend.
type Session struct {
	Identity       Identity  `json:"identity"`
	LastVerifiedAt time.Time `json:"last_verified_at"`
}

// ErrNoIdentity is the failure for a body that does not describe a user.
var ErrNoIdentity = errors.New("identity payload has no email")

// IdentityFromRecord reads the identity endpoint's answer.
func IdentityFromRecord(key string, r record.Record) (Identity, error) {
	email, _ := r.Text("email")
	email = strings.TrimSpace(email)
	if r == nil || email == "" {
		return Identity{}, ErrNoIdentity
	}
	name, _ := r.Text("username")
	role, _ := r.Text("role")
	return Identity{
		Key:   key,
		Email: email,
		Name:  name,
		Role:  NormalizeRole(role),
	}, nil
}
