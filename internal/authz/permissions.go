package authz

import "strings"

// Actions recognised across the application.
const (
	ActionUpload      = "upload"
	ActionAnalyze     = "analyze"
	ActionCompare     = "compare"
	ActionViewReports = "view_reports"
	ActionReview      = "review_analyses"
	ActionFlag        = "flag_analysis"
	ActionManageUsers = "manage_users"
)

// Entry lists the route prefixes and action identifiers granted to a
// single role. Prefixes are absolute, locale-agnostic paths.
type Entry struct {
	Routes  []string
	Actions []string
}

// Table is the static role to permission mapping. It is built once at
// startup and read concurrently without locking.
type Table map[Role]Entry

// DefaultTable returns the canonical permission table. Each role is
// scoped to its own section; the support/admin overlap on review paths
// is expressed at the edge middleware, not here.
func DefaultTable() Table {
	return Table{
		RoleUser: {
			Routes: []string{
				"/user/dashboard",
				"/user/uploads",
				"/user/comparisons",
				"/user/reports",
			},
			Actions: []string{ActionUpload, ActionAnalyze, ActionCompare, ActionViewReports},
		},
		RoleSupport: {
			Routes: []string{
				"/support/dashboard",
				"/support/review",
			},
			Actions: []string{ActionReview, ActionFlag},
		},
		RoleAdmin: {
			Routes: []string{
				"/admin/dashboard",
				"/admin/users",
				"/admin/reports",
			},
			Actions: []string{ActionManageUsers, ActionViewReports, ActionReview},
		},
	}
}

// NormalizePath strips a single leading two-letter lowercase locale
// segment. Permission rules are locale-agnostic.
func NormalizePath(path string) string {
	if len(path) >= 3 && path[0] == '/' && isLocaleSegment(path[1:3]) {
		if len(path) == 3 {
			return "/"
		}
		if path[3] == '/' {
			return path[3:]
		}
	}
	return path
}

func isLocaleSegment(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'z' && s[1] >= 'a' && s[1] <= 'z'
}

// IsRouteAllowed reports whether the role may access the given path.
// Matching is prefix based but segment aligned: "/user/dashboard"
// covers "/user/dashboard/uploads" yet not "/user/dashboardX".
func (t Table) IsRouteAllowed(role Role, pathname string) (bool, error) {
	entry, ok := t[role]
	if !ok {
		return false, ErrUnknownRole
	}
	normalized := NormalizePath(pathname)
	for _, prefix := range entry.Routes {
		if matchesSegments(normalized, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// AllowsAction reports whether the role may perform the named action.
func (t Table) AllowsAction(role Role, action string) (bool, error) {
	entry, ok := t[role]
	if !ok {
		return false, ErrUnknownRole
	}
	for _, a := range entry.Actions {
		if a == action {
			return true, nil
		}
	}
	return false, nil
}

// matchesSegments reports whether path equals prefix or continues past
// it at a path segment boundary.
func matchesSegments(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
