package i18n_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/swellway/swellway-api/internal/i18n"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name  string
		prefs []string
		want  language.Tag
	}{
		{"empty defaults to english", nil, language.English},
		{"exact match", []string{"de"}, language.German},
		{"regional variant maps to base", []string{"pt-BR"}, language.Portuguese},
		{"quality ordering", []string{"da, fr;q=0.8, en;q=0.7"}, language.French},
		{"unsupported falls back", []string{"ja"}, language.English},
		{"garbage is ignored", []string{";;;", "es"}, language.Spanish},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, i18n.Match(tc.prefs...))
		})
	}
}

func TestMiddlewareResolutionOrder(t *testing.T) {
	var got language.Tag
	handler := i18n.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = i18n.FromContext(r.Context())
	}))

	t.Run("query beats cookie and header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?lang=fr", nil)
		req.AddCookie(&http.Cookie{Name: i18n.CookieName, Value: "de"})
		req.Header.Set("Accept-Language", "es")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, language.French, got)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, i18n.CookieName, cookies[0].Name)
		require.Equal(t, "fr", cookies[0].Value)
	})

	t.Run("cookie beats header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: i18n.CookieName, Value: "pt"})
		req.Header.Set("Accept-Language", "de")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, language.Portuguese, got)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("header only", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Language", "de-AT, de;q=0.9")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, language.German, got)
	})
}

func TestBundleFallback(t *testing.T) {
	bundle, err := i18n.LoadBundle()
	require.NoError(t, err)

	require.Equal(t, "We received your message", bundle.T(language.English, "email.contact_ack.subject"))
	require.Equal(t, "Hemos recibido tu mensaje", bundle.T(language.Spanish, "email.contact_ack.subject"))
	// unknown keys pass through
	require.Equal(t, "no.such.key", bundle.T(language.German, "no.such.key"))
}

func TestCodes(t *testing.T) {
	require.Equal(t, []string{"en", "es", "fr", "de", "pt"}, i18n.Codes())
}
