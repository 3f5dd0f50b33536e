package catalog

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func file(body string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(body)}
}

func TestEmbeddedLocalesAgreeOnKeys(t *testing.T) {
	set := Default()
	require.Equal(t, []string{"en-US", "fr-FR"}, set.Locales())

	base := set.Keys(BaseLocale)
	require.NotEmpty(t, base)
	for _, locale := range set.Locales() {
		assert.Equal(t, base, set.Keys(locale), "keys of %s", locale)
	}
}

func TestEmbeddedNamespaces(t *testing.T) {
	for _, ns := range []string{"errors", "reminders"} {
		locale, messages := Default().Namespace("en-US", ns)
		assert.Equal(t, "en-US", locale)
		assert.NotEmpty(t, messages, ns)
	}
}

func TestDefaultFeedsMessagePrinter(t *testing.T) {
	_ = Default()
	assert.Equal(t, "Votre devis D-2026-0001",
		message.NewPrinter(language.French).Sprintf("reminder.quote.subject", "D-2026-0001"))
	assert.Equal(t, "Votre devis D-2026-0001",
		message.NewPrinter(language.MustParse("fr-FR")).Sprintf("reminder.quote.subject", "D-2026-0001"))
}

func TestLookupFallsBackToBaseLocale(t *testing.T) {
	set, err := Load(fstest.MapFS{
		"locales/fr-FR/quotes.yaml": file("locale: fr-FR\nnamespace: quotes\nmessages:\n  quote.title: Devis\n  quote.footer: Merci\n"),
		"locales/en-US/quotes.yaml": file("locale: en-US\nnamespace: quotes\nmessages:\n  quote.title: Quote\n"),
	})
	require.NoError(t, err)

	text, ok := set.Lookup("en-US", "quote.title")
	assert.True(t, ok)
	assert.Equal(t, "Quote", text)

	text, ok = set.Lookup("en-US", "quote.footer")
	assert.True(t, ok)
	assert.Equal(t, "Merci", text)

	_, ok = set.Lookup("en-US", "  ")
	assert.False(t, ok)

	locale, messages := set.Namespace("de-DE", "quotes")
	assert.Equal(t, BaseLocale, locale)
	assert.Equal(t, "Devis", messages["quote.title"])
}

func TestLoadRejectsBadCatalogs(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"empty": {},
		"key shared by two namespaces": {
			"locales/fr-FR/quotes.yaml":   file("locale: fr-FR\nnamespace: quotes\nmessages:\n  title: a\n"),
			"locales/fr-FR/invoices.yaml": file("locale: fr-FR\nnamespace: invoices\nmessages:\n  title: b\n"),
		},
		"locale differs from directory": {
			"locales/fr-FR/quotes.yaml": file("locale: en-US\nnamespace: quotes\nmessages:\n  title: a\n"),
		},
		"namespace differs from file": {
			"locales/fr-FR/quotes.yaml": file("locale: fr-FR\nnamespace: invoices\nmessages:\n  title: a\n"),
		},
		"no base locale": {
			"locales/en-US/quotes.yaml": file("locale: en-US\nnamespace: quotes\nmessages:\n  title: a\n"),
		},
		"no messages": {
			"locales/fr-FR/quotes.yaml": file("locale: fr-FR\nnamespace: quotes\n"),
		},
		"malformed yaml": {
			"locales/fr-FR/quotes.yaml": file("locale: [unterminated\n"),
		},
	}
	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(fsys)
			assert.Error(t, err)
		})
	}
}
