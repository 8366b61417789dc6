package backoffice

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/backoffice/internal/config"
	"github.com/roach88/backoffice/internal/record"
	"github.com/roach88/backoffice/internal/session"
)

// Sign-in methods.
const (
	MethodEmail = "email"
	MethodPhone = "phone"
)

// ErrBadCredentials is returned when no account matches. It never says
// which half was wrong.
var ErrBadCredentials = errors.New("invalid credentials")

// MemberSource lists members for phone sign-in. *remote.Collection
// satisfies it.
type MemberSource interface {
	List(ctx context.Context) ([]record.Record, error)
}

// SignInGate persists a verified key. *session.Gate satisfies it.
type SignInGate interface {
	SignIn(ctx context.Context, key string) (*session.Session, error)
}

// Authenticator turns credentials into a session key and hands it to the
// gate, which verifies it against the identity resource.
type Authenticator struct {
	Accounts []config.Account
	Members  MemberSource
	Gate     SignInGate
	Logger   *slog.Logger
}

// Login checks credential and password for method, then signs in with the
// resulting key (the account email, or the phone number).
func (a *Authenticator) Login(ctx context.Context, method, credential, password string) (*session.Session, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" || password == "" {
		return nil, fmt.Errorf("%s and password are required", method)
	}

	var key string
	switch method {
	case MethodEmail:
		acct, ok := a.matchAccount(credential, password)
		if !ok {
			return nil, ErrBadCredentials
		}
		key = acct.Email
	case MethodPhone:
		if a.Members == nil {
			return nil, errors.New("phone sign-in is not configured")
		}
		members, err := a.Members.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		if !matchMember(members, credential, password) {
			return nil, ErrBadCredentials
		}
		key = credential
	default:
		return nil, fmt.Errorf("unknown sign-in method %q (want %s or %s)", method, MethodEmail, MethodPhone)
	}

	s, err := a.Gate.SignIn(ctx, key)
	if err != nil {
		return nil, err
	}
	a.logger().Info("signed in", "method", method, "email", s.Identity.Email, "role", s.Identity.Role)
	return s, nil
}

func (a *Authenticator) matchAccount(email, password string) (config.Account, bool) {
	for _, acct := range a.Accounts {
		if strings.EqualFold(acct.Email, email) && equalSecret(acct.Password, password) {
			return acct, true
		}
	}
	return config.Account{}, false
}

func matchMember(members []record.Record, phone, password string) bool {
	for _, m := range members {
		p, _ := m.Text("phone")
		if strings.TrimSpace(p) != phone {
			continue
		}
		stored, _ := m.Text("password")
		return equalSecret(stored, password)
	}
	return false
}

func equalSecret(stored, given string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func (a *Authenticator) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
