// Package policy holds the pluggable gates that run before an attempt may
// start: a shared quiz password, a local-agent-only rule, role checks. Each
// is one Gate and the deployment composes the chain it wants.
package policy

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadPassword = errors.New("invalid quiz password")
	ErrRoleRefused = errors.New("role may not start attempts")
	ErrMustBeLocal = errors.New("attempts must be started from the local agent")
	ErrNotLoggedIn = errors.New("authentication required")
)

// StartRequest is what the gates get to look at.
type StartRequest struct {
	QuizID   string
	UserID   string
	Role     string
	Password string
	// Local is set when the request came through the offline agent rather
	// than the public surface.
	Local bool
}

// Gate approves or rejects a start request.
type Gate func(ctx context.Context, req StartRequest) error

// Chain runs gates in order and stops at the first rejection.
func Chain(gates ...Gate) Gate {
	return func(ctx context.Context, req StartRequest) error {
		for _, g := range gates {
			if err := g(ctx, req); err != nil {
				return err
			}
		}
		return nil
	}
}

// AllowAll approves everything.
func AllowAll(context.Context, StartRequest) error { return nil }

// RequireAuthenticated rejects requests with no user identity.
func RequireAuthenticated(_ context.Context, req StartRequest) error {
	if req.UserID == "" {
		return ErrNotLoggedIn
	}
	return nil
}

// SharedPassword gates starts on a shared quiz password, compared against a
// bcrypt hash so the secret never sits in config as plaintext.
func SharedPassword(hash string) Gate {
	return func(_ context.Context, req StartRequest) error {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			return ErrBadPassword
		}
		return nil
	}
}

// RequireRole lets only the named roles start attempts.
func RequireRole(roles ...string) Gate {
	return func(_ context.Context, req StartRequest) error {
		for _, r := range roles {
			if req.Role == r {
				return nil
			}
		}
		return ErrRoleRefused
	}
}

// RequireLocal is the flight-mode rule: starts are only accepted from the
// local agent, never over the public surface.
func RequireLocal(_ context.Context, req StartRequest) error {
	if !req.Local {
		return ErrMustBeLocal
	}
	return nil
}
