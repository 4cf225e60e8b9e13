package authz

import (
	"context"
	"time"
)

// Outcome classifies an authorization decision for logging and metrics.
type Outcome string

const (
	OutcomeGranted         Outcome = "granted"
	OutcomeNoSession       Outcome = "no_session"
	OutcomeIdentityFailure Outcome = "identity_failure"
	OutcomeUnauthorized    Outcome = "unauthorized"
	OutcomeUnknownRole     Outcome = "unknown_role"
)

// Profile is the persisted record binding a principal to a role. It is
// created by the identity layer and only ever read here.
type Profile struct {
	ID          int64
	UserID      int64
	Role        Role
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProfileSource resolves profiles for authenticated principals.
// GetOrCreate provisions a default user-role record when the identity
// exists without one; RoleOf is a cheap read that reports ErrUnknownRole
// for corrupt role values and defaults missing profiles to RoleUser.
type ProfileSource interface {
	GetOrCreate(ctx context.Context, userID int64) (Profile, error)
	RoleOf(ctx context.Context, userID int64) (Role, error)
}

// IdentityVerifier confirms that a session-bound user id still maps to
// an active account. A failure here is distinct from having no session.
type IdentityVerifier interface {
	VerifyUser(ctx context.Context, userID int64) error
}

// DecisionRecorder counts authorization outcomes. Implementations must
// never block or fail the request flow.
type DecisionRecorder interface {
	RecordDecision(outcome Outcome, role Role)
}

// Decision is the result of a guard evaluation. The core performs no
// redirects itself: a denied decision carries the target and the HTTP
// layer executes the navigation.
type Decision struct {
	Outcome  Outcome
	Profile  Profile
	Redirect string
}

// Granted wraps an allowed decision carrying the resolved profile.
func Granted(p Profile) Decision {
	return Decision{Outcome: OutcomeGranted, Profile: p}
}

// Denied wraps a refused decision carrying the redirect target.
func Denied(outcome Outcome, redirect string) Decision {
	return Decision{Outcome: outcome, Redirect: redirect}
}

// Allowed reports whether the decision grants access.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeGranted
}
