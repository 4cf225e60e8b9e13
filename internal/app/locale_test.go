package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/delta-app/delta/testing"
)

func TestNewLocalesOrdersDefaultFirst(t *testing.T) {
	l, err := NewLocales([]string{"fr", "en", "de"}, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "fr", "de"}, l.Codes())
	assert.Equal(t, "en", l.Default())
	assert.True(t, l.Supported("de"))
	assert.False(t, l.Supported("es"))
}

func TestNewLocalesRejectsGarbage(t *testing.T) {
	_, err := NewLocales([]string{"not a tag"}, "en")
	require.Error(t, err)
}

func TestNegotiate(t *testing.T) {
	l, err := NewLocales([]string{"en", "fr", "de"}, "en")
	require.NoError(t, err)

	cases := []struct {
		name   string
		accept string
		want   string
	}{
		{"exact match", "fr", "fr"},
		{"regional variant", "de-CH", "de"},
		{"quality ordering", "es;q=0.9, fr;q=0.8", "fr"},
		{"unsupported falls back", "es", "en"},
		{"empty header", "", "en"},
		{"garbage header", ";;;", "en"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.accept != "" {
				req.Header.Set("Accept-Language", tc.accept)
			}
			assert.Equal(t, tc.want, l.Negotiate(req))
		})
	}
}
