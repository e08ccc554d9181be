package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	"golang.org/x/text/language"
)

//go:embed messages/*.json
var messageFS embed.FS

// Bundle holds per-locale message catalogs loaded from the embedded JSON files.
type Bundle struct {
	catalogs map[string]map[string]string
}

// LoadBundle parses every embedded catalog. Missing locales are an error:
// shipping a locale without its messages file is a build mistake.
func LoadBundle() (*Bundle, error) {
	catalogs := make(map[string]map[string]string, len(Supported))
	for _, tag := range Supported {
		code := Code(tag)
		raw, err := messageFS.ReadFile("messages/" + code + ".json")
		if err != nil {
			return nil, fmt.Errorf("i18n: read catalog %s: %w", code, err)
		}
		var catalog map[string]string
		if err := json.Unmarshal(raw, &catalog); err != nil {
			return nil, fmt.Errorf("i18n: parse catalog %s: %w", code, err)
		}
		catalogs[code] = catalog
	}
	return &Bundle{catalogs: catalogs}, nil
}

// T returns the message for key in the given locale, falling back to English
// and finally to the key itself so a missing entry never breaks a page.
func (b *Bundle) T(tag language.Tag, key string) string {
	if b == nil {
		return key
	}
	if catalog, ok := b.catalogs[Code(tag)]; ok {
		if msg, ok := catalog[key]; ok && msg != "" {
			return msg
		}
	}
	if catalog, ok := b.catalogs["en"]; ok {
		if msg, ok := catalog[key]; ok && msg != "" {
			return msg
		}
	}
	return key
}

// Tf formats a message with fmt.Sprintf semantics.
func (b *Bundle) Tf(tag language.Tag, key string, args ...any) string {
	return fmt.Sprintf(b.T(tag, key), args...)
}
