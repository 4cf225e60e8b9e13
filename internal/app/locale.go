package app

import (
	"fmt"
	"net/http"

	"golang.org/x/text/language"
)

// Locales negotiates the UI locale for a request against the
// configured supported set. The default locale is always first, so it
// wins when negotiation is inconclusive.
type Locales struct {
	codes   []string
	def     string
	matcher language.Matcher
}

// NewLocales builds a Locales set from config. Codes must be BCP 47
// parseable; Delta uses two-letter base languages.
func NewLocales(codes []string, def string) (*Locales, error) {
	ordered := []string{def}
	for _, code := range codes {
		if code != def {
			ordered = append(ordered, code)
		}
	}
	tags := make([]language.Tag, len(ordered))
	for i, code := range ordered {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("locales: parse %q: %w", code, err)
		}
		tags[i] = tag
	}
	return &Locales{codes: ordered, def: def, matcher: language.NewMatcher(tags)}, nil
}

// Codes returns the supported locale codes, default first.
func (l *Locales) Codes() []string {
	return l.codes
}

// Default returns the fallback locale code.
func (l *Locales) Default() string {
	return l.def
}

// Supported reports whether code is in the configured set.
func (l *Locales) Supported(code string) bool {
	for _, c := range l.codes {
		if c == code {
			return true
		}
	}
	return false
}

// Negotiate picks the best supported locale for the request based on
// its Accept-Language header.
func (l *Locales) Negotiate(r *http.Request) string {
	_, idx := language.MatchStrings(l.matcher, r.Header.Get("Accept-Language"))
	if idx < 0 || idx >= len(l.codes) {
		return l.def
	}
	return l.codes[idx]
}
