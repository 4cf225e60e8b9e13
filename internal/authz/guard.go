package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
)

// Guard is the authoritative per-request gate for protected sections.
// It resolves the caller's profile, enforces a required role set, and
// returns a Decision for the HTTP layer to act on.
type Guard struct {
	Profiles ProfileSource
	Logger   *slog.Logger
	Metrics  DecisionRecorder
}

// GuardRequest carries the per-request inputs a guard evaluation needs.
// UserID is zero for unauthenticated callers. Path is the invocation
// path when known; Referer is the fallback hint for the post-login
// return target. Both are untrusted.
type GuardRequest struct {
	UserID  int64
	Locale  string
	Path    string
	Referer string
}

// Require evaluates the caller against the required role set. It either
// returns a granted decision carrying the profile or a denied decision
// carrying the sign-in or unauthorized redirect target.
func (g *Guard) Require(ctx context.Context, req GuardRequest, required ...Role) Decision {
	returnTo := SafeReturnTarget(req.Locale, req.Path, req.Referer)

	if req.UserID == 0 {
		return g.deny(Denied(OutcomeNoSession, SignInPath(req.Locale, returnTo)), req, "")
	}

	profile, err := g.Profiles.GetOrCreate(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, ErrUnknownRole) {
			g.logError("guard role outside closed set", err, req)
			return g.deny(Denied(OutcomeUnknownRole, "/"+req.Locale+"/unauthorized"), req, "")
		}
		g.logError("guard profile resolution", err, req)
		return g.deny(Denied(OutcomeIdentityFailure, SignInPath(req.Locale, returnTo)), req, "")
	}

	if !profile.Role.In(required...) {
		return g.deny(Denied(OutcomeUnauthorized, "/"+req.Locale+"/unauthorized"), req, string(profile.Role))
	}

	if g.Logger != nil {
		g.Logger.Info("guard access granted",
			slog.Int64("user_id", req.UserID),
			slog.String("role", string(profile.Role)),
			slog.String("locale", req.Locale),
			slog.String("path", req.Path),
		)
	}
	if g.Metrics != nil {
		g.Metrics.RecordDecision(OutcomeGranted, profile.Role)
	}
	return Granted(profile)
}

func (g *Guard) deny(d Decision, req GuardRequest, role string) Decision {
	if g.Logger != nil {
		g.Logger.Warn("guard access denied",
			slog.String("outcome", string(d.Outcome)),
			slog.Int64("user_id", req.UserID),
			slog.String("role", role),
			slog.String("locale", req.Locale),
			slog.String("path", req.Path),
			slog.String("redirect", d.Redirect),
		)
	}
	if g.Metrics != nil {
		g.Metrics.RecordDecision(d.Outcome, Role(role))
	}
	return d
}

func (g *Guard) logError(msg string, err error, req GuardRequest) {
	if g.Logger != nil {
		g.Logger.Error(msg,
			slog.Any("error", err),
			slog.Int64("user_id", req.UserID),
			slog.String("path", req.Path),
		)
	}
}

// SignInPath builds the sign-in redirect carrying the return target.
func SignInPath(locale, returnTo string) string {
	return "/" + locale + "/sign-in?redirectTo=" + url.QueryEscape(returnTo)
}

// SafeReturnTarget reduces untrusted redirect hints to a safe in-app
// path. Absolute URLs lose scheme and host, values are coerced to be
// rooted, dot segments are rejected, and anything outside the current
// locale resets to /{locale}. Header spoofing can therefore never
// produce an open redirect.
func SafeReturnTarget(locale string, hints ...string) string {
	fallback := "/" + locale
	for _, hint := range hints {
		if sanitized, ok := sanitizeReturnTarget(locale, hint); ok {
			return sanitized
		}
	}
	return fallback
}

func sanitizeReturnTarget(locale, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if u, err := url.Parse(raw); err == nil && (u.Scheme != "" || u.Host != "") {
		raw = u.Path
		if u.RawQuery != "" {
			raw += "?" + u.RawQuery
		}
	}
	if raw == "" || strings.HasPrefix(raw, "//") {
		return "", false
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	pathPart, _, _ := strings.Cut(raw, "?")
	if hasDotSegment(pathPart) {
		return "", false
	}
	if raw != "/"+locale && !strings.HasPrefix(raw, "/"+locale+"/") {
		return "", false
	}
	return raw, true
}

// hasDotSegment reports whether any path segment is "." or "..". The
// browser resolves those after the redirect, so a hint like
// /en/../admin would otherwise escape the locale prefix. Percent-encoded
// spellings count too.
func hasDotSegment(p string) bool {
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}
