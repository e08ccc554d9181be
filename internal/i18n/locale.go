// Package i18n resolves the request locale and serves localized UI strings.
//
// The site ships in five locales. Resolution order is a lang query parameter
// (which also sets the cookie), the lang cookie, then the Accept-Language
// header; anything unresolvable falls back to English.
package i18n

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

// Supported lists the locales the site ships in. English first: it is both
// the default and the fallback for missing translations.
var Supported = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Portuguese,
}

var matcher = language.NewMatcher(Supported)

// CookieName stores the visitor's locale choice.
const CookieName = "lang"

type localeKey struct{}

// WithLocale stores the resolved locale on the context.
func WithLocale(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, localeKey{}, tag)
}

// FromContext returns the resolved locale, defaulting to English.
func FromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(localeKey{}).(language.Tag); ok {
		return tag
	}
	return language.English
}

// Code returns the two-letter code for a supported tag ("en", "es", ...).
func Code(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// Codes returns the two-letter codes of all supported locales.
func Codes() []string {
	out := make([]string, 0, len(Supported))
	for _, tag := range Supported {
		out = append(out, Code(tag))
	}
	return out
}

// Match negotiates the best supported locale for the given preferences.
// Unknown or empty input yields English.
func Match(preferences ...string) language.Tag {
	var tags []language.Tag
	for _, pref := range preferences {
		pref = strings.TrimSpace(pref)
		if pref == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(pref)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return language.English
	}
	_, index, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return Supported[index]
}

// Middleware resolves the locale for each request and stores it in context.
// A lang query parameter pins the choice via cookie for subsequent visits.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var prefs []string
		if q := strings.TrimSpace(r.URL.Query().Get("lang")); q != "" {
			prefs = append(prefs, q)
		}
		if cookie, err := r.Cookie(CookieName); err == nil {
			prefs = append(prefs, cookie.Value)
		}
		prefs = append(prefs, r.Header.Get("Accept-Language"))

		tag := Match(prefs...)
		if q := strings.TrimSpace(r.URL.Query().Get("lang")); q != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    Code(tag),
				Path:     "/",
				MaxAge:   60 * 60 * 24 * 365,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), tag)))
	})
}
