// File: internal/infra/i18n/translator.go
package i18n

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Translator resolves dotted message keys against an embedded YAML locale.
// Messages are fmt templates; positional args fill the verbs.
type Translator struct {
	locale   string
	messages map[string]string
}

// New loads the given locale (e.g. "uz"). Missing locales are an error,
// missing keys at runtime fall back to the key itself.
func New(locale string) (*Translator, error) {
	b, err := localeFS.ReadFile("locales/" + locale + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("load locale %q: %w", locale, err)
	}
	tr, err := newTranslatorFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	tr.locale = locale
	return tr, nil
}

func newTranslatorFromBytes(b []byte) (*Translator, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	msgs := make(map[string]string)
	flatten("", raw, msgs)
	return &Translator{messages: msgs}, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			flatten(key, val, out)
		}
	}
}

func (t *Translator) Locale() string { return t.locale }

func (t *Translator) T(key string, args ...interface{}) string {
	tmpl, ok := t.messages[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
