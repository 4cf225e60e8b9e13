package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/delta-app/delta/testing"
)

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"strips locale", "/en/user/dashboard", "/user/dashboard"},
		{"strips other locale", "/fr/admin/users", "/admin/users"},
		{"bare locale", "/en", "/"},
		{"no locale", "/user/dashboard", "/user/dashboard"},
		{"three letter segment kept", "/eng/user", "/eng/user"},
		{"uppercase segment kept", "/EN/user", "/EN/user"},
		{"locale-like mid path kept", "/user/en/dashboard", "/user/en/dashboard"},
		{"single strip only", "/en/fr/user", "/fr/user"},
		{"root", "/", "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePath(tc.in))
		})
	}
}

func TestIsRouteAllowed(t *testing.T) {
	table := DefaultTable()

	cases := []struct {
		name string
		role Role
		path string
		want bool
	}{
		{"user dashboard with locale", RoleUser, "/en/user/dashboard", true},
		{"user nested upload page", RoleUser, "/en/user/uploads/abc/analyses", true},
		{"user denied admin", RoleUser, "/en/admin/users", false},
		{"user denied support", RoleUser, "/en/support/review", false},
		{"segment boundary holds", RoleUser, "/en/user/dashboardX", false},
		{"prefix smuggling denied", RoleUser, "/en/user/uploadsextra", false},
		{"support review", RoleSupport, "/de/support/review", true},
		{"support denied admin", RoleSupport, "/de/admin/dashboard", false},
		{"admin users", RoleAdmin, "/fr/admin/users/42/role", true},
		{"admin denied user scope", RoleAdmin, "/fr/user/uploads", false},
		{"no locale prefix", RoleAdmin, "/admin/reports", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := table.IsRouteAllowed(tc.role, tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIsRouteAllowedUnknownRole(t *testing.T) {
	table := DefaultTable()
	allowed, err := table.IsRouteAllowed(Role("superadmin"), "/en/admin/users")
	require.ErrorIs(t, err, ErrUnknownRole)
	assert.False(t, allowed, "unknown roles must never grant")
}

func TestAllowsAction(t *testing.T) {
	table := DefaultTable()

	ok, err := table.AllowsAction(RoleUser, ActionUpload)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = table.AllowsAction(RoleUser, ActionManageUsers)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = table.AllowsAction(RoleSupport, ActionFlag)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = table.AllowsAction(Role("ghost"), ActionUpload)
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestParseRole(t *testing.T) {
	for _, role := range Roles() {
		parsed, err := ParseRole(string(role))
		require.NoError(t, err)
		assert.Equal(t, role, parsed)
	}

	_, err := ParseRole("owner")
	require.ErrorIs(t, err, ErrUnknownRole)

	_, err = ParseRole("")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestRoleIn(t *testing.T) {
	assert.True(t, RoleAdmin.In(RoleAdmin, RoleSupport))
	assert.False(t, RoleUser.In(RoleAdmin, RoleSupport))
	assert.False(t, RoleAdmin.In(), "empty required set matches nothing")
}
