package authz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta-app/delta/internal/shared"
)

func checkCall(t *testing.T, h *CheckHandler, body string, userID string) (int, checkResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/authz/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess := &shared.Session{}
	if userID != "" {
		sess.SetUser(userID)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	var out checkResponse
	if res.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	}
	return res.Code, out
}

func TestCheckHandlerAnonymousDenied(t *testing.T) {
	h := NewCheckHandler(DefaultTable(), &stubProfiles{}, nil, "en")

	code, out := checkCall(t, h, `{"path":"/en/admin/users"}`, "")

	assert.Equal(t, http.StatusOK, code)
	assert.False(t, out.Allowed)
	assert.Equal(t, "/en/sign-in", out.RedirectTo)
}

func TestCheckHandlerAllowedRoute(t *testing.T) {
	h := NewCheckHandler(DefaultTable(), &stubProfiles{profile: Profile{Role: RoleUser}}, nil, "en")

	code, out := checkCall(t, h, `{"path":"/en/user/uploads"}`, "7")

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, out.Allowed)
	assert.Empty(t, out.RedirectTo)
}

func TestCheckHandlerDeniedRoute(t *testing.T) {
	h := NewCheckHandler(DefaultTable(), &stubProfiles{profile: Profile{Role: RoleUser}}, nil, "en")

	code, out := checkCall(t, h, `{"path":"/fr/admin/users"}`, "7")

	assert.Equal(t, http.StatusOK, code)
	assert.False(t, out.Allowed)
	assert.Equal(t, "/fr/sign-in", out.RedirectTo, "fallback follows the path locale")
}

func TestCheckHandlerAllowListNarrows(t *testing.T) {
	h := NewCheckHandler(DefaultTable(), &stubProfiles{profile: Profile{Role: RoleSupport}}, nil, "en")

	// The route itself would be fine for support, but the client asked
	// for admin-only access.
	code, out := checkCall(t, h, `{"path":"/en/support/review","allow":["admin"]}`, "7")

	assert.Equal(t, http.StatusOK, code)
	assert.False(t, out.Allowed)
}

func TestCheckHandlerRedirectHintSanitized(t *testing.T) {
	h := NewCheckHandler(DefaultTable(), &stubProfiles{profile: Profile{Role: RoleUser}}, nil, "en")

	code, out := checkCall(t, h, `{"path":"/en/admin/users","redirect":"/en/user/dashboard"}`, "7")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/en/user/dashboard", out.RedirectTo)

	code, out = checkCall(t, h, `{"path":"/en/admin/users","redirect":"https://evil.example/x"}`, "7")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/en/sign-in", out.RedirectTo, "hostile hints reset to sign-in")
}

func TestCheckHandlerValidation(t *testing.T) {
	h := NewCheckHandler(DefaultTable(), &stubProfiles{}, nil, "en")

	code, _ := checkCall(t, h, `{"allow":["admin"]}`, "7")
	assert.Equal(t, http.StatusUnprocessableEntity, code, "path is required")

	code, _ = checkCall(t, h, `{"path":"/en/user","allow":["root"]}`, "7")
	assert.Equal(t, http.StatusUnprocessableEntity, code, "allow entries are a closed set")

	code, _ = checkCall(t, h, `{"path":`, "7")
	assert.Equal(t, http.StatusBadRequest, code)
}
