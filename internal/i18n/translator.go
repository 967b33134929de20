// Package i18n resolves message keys to display strings for the languages
// the service ships catalogs for.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/language"
)

// FallbackLanguage is used when the caller asks for nothing we support.
const FallbackLanguage = "en"

//go:embed locales/*.json
var locales embed.FS

// Translator holds one flat key→message catalog per language.
type Translator struct {
	catalogs map[string]map[string]string
	tags     []string
	matcher  language.Matcher
}

// New loads the embedded catalogs. The fallback language is always matched first.
func New() (*Translator, error) {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	t := &Translator{catalogs: make(map[string]map[string]string, len(entries))}
	supported := []language.Tag{language.MustParse(FallbackLanguage)}
	t.tags = []string{FallbackLanguage}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".json" {
			continue
		}
		raw, err := locales.ReadFile(path.Join("locales", name))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", name, err)
		}
		catalog := map[string]string{}
		if err := json.Unmarshal(raw, &catalog); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", name, err)
		}

		lang := strings.TrimSuffix(name, ".json")
		t.catalogs[lang] = catalog
		if lang != FallbackLanguage {
			supported = append(supported, language.MustParse(lang))
			t.tags = append(t.tags, lang)
		}
	}

	if _, ok := t.catalogs[FallbackLanguage]; !ok {
		return nil, fmt.Errorf("missing %s catalog", FallbackLanguage)
	}
	t.matcher = language.NewMatcher(supported)
	return t, nil
}

// Languages lists the supported language tags, fallback first.
func (t *Translator) Languages() []string {
	return append([]string(nil), t.tags...)
}

// Negotiate picks the best supported language for an Accept-Language header.
func (t *Translator) Negotiate(acceptLanguage string) string {
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return FallbackLanguage
	}
	_, idx, conf := t.matcher.Match(prefs...)
	if conf == language.No {
		return FallbackLanguage
	}
	return t.tags[idx]
}

// Translate renders key in lang, falling back to the default catalog and
// finally to the key itself.
func (t *Translator) Translate(lang, key string) string {
	if catalog, ok := t.catalogs[lang]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}
	if msg, ok := t.catalogs[FallbackLanguage][key]; ok {
		return msg
	}
	return key
}
