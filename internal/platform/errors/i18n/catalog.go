// Package i18n renders the user-facing text of error codes from the
// "errors" namespace of the message catalog.
package i18n

import (
	"strings"
	"sync"
	"text/template"

	"github.com/louisbranch/tradebook/internal/platform/i18n/catalog"
)

const namespace = "errors"

// Messages holds the compiled error templates of one locale.
type Messages struct {
	locale    string
	source    map[string]string
	templates map[string]*template.Template
}

// compiled caches Messages by requested locale.
var compiled sync.Map

// For returns the error messages for locale. Unknown and empty locales
// resolve to the base locale.
func For(locale string) *Messages {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		locale = catalog.BaseLocale
	}
	if m, ok := compiled.Load(locale); ok {
		return m.(*Messages)
	}
	resolved, source := catalog.Default().Namespace(locale, namespace)
	if resolved != locale {
		base := For(resolved)
		compiled.Store(locale, base)
		return base
	}
	m, _ := compiled.LoadOrStore(locale, Compile(resolved, source))
	return m.(*Messages)
}

// Compile parses each message as a text/template keyed by metadata names.
// Messages that fail to parse are kept as literal text.
func Compile(locale string, source map[string]string) *Messages {
	m := &Messages{
		locale:    locale,
		source:    source,
		templates: make(map[string]*template.Template, len(source)),
	}
	for code, text := range source {
		if tmpl, err := template.New(code).Parse(text); err == nil {
			m.templates[code] = tmpl
		}
	}
	return m
}

// Locale is the locale that served these messages.
func (m *Messages) Locale() string {
	return m.locale
}

// Has reports whether code has a message.
func (m *Messages) Has(code string) bool {
	_, ok := m.source[code]
	return ok
}

// Render returns the message for code filled with metadata. It returns the
// code itself when there is no message and the raw text when rendering fails.
func (m *Messages) Render(code string, metadata map[string]string) string {
	text, ok := m.source[code]
	if !ok {
		return code
	}
	tmpl, ok := m.templates[code]
	if !ok {
		return text
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, metadata); err != nil {
		return text
	}
	return out.String()
}
