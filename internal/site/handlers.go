package site

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/swellway/swellway-api/internal/common"
	"github.com/swellway/swellway-api/internal/i18n"
)

// Handlers serves the crawl and metadata endpoints.
type Handlers struct {
	Svc    *Service
	Bundle *i18n.Bundle
}

// Sitemap handles GET /sitemap.xml.
func (h *Handlers) Sitemap(w http.ResponseWriter, r *http.Request) {
	raw, err := h.Svc.Sitemap(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=600")
	_, _ = w.Write(raw)
}

// Robots handles GET /robots.txt.
func (h *Handlers) Robots(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimRight(h.Svc.BaseURL, "/")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "User-agent: *\nDisallow: /admin/\nSitemap: %s/sitemap.xml\n", base)
}

// Meta handles GET /site, returning localized site metadata for page heads.
func (h *Handlers) Meta(w http.ResponseWriter, r *http.Request) {
	tag := i18n.FromContext(r.Context())
	common.JSON(w, http.StatusOK, map[string]any{
		"locale":  i18n.Code(tag),
		"locales": i18n.Codes(),
		"tagline": h.Bundle.T(tag, "site.tagline"),
	})
}
