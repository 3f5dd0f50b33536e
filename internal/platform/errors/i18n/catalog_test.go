package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForResolvesLocales(t *testing.T) {
	base := For("fr-FR")
	assert.Equal(t, "fr-FR", base.Locale())
	assert.Same(t, base, For(""))
	assert.Same(t, base, For("pt-BR"))
	assert.Equal(t, "en-US", For("en-US").Locale())
}

func TestRenderEmbeddedMessages(t *testing.T) {
	email := map[string]string{"email": "nope"}
	assert.Equal(t, "Email address nope is invalid.", For("en-US").Render("CLIENT_INVALID_EMAIL", email))
	assert.Equal(t, "L'adresse e-mail nope est invalide.", For("fr-FR").Render("CLIENT_INVALID_EMAIL", email))
	assert.True(t, For("en-US").Has("FOLLOWUP_STALE"))
}

func TestRenderFallbacks(t *testing.T) {
	m := Compile("test", map[string]string{
		"QUOTE_INVALID_LINE": "line {{.line}} is invalid",
		"BROKEN":             "{{ if .line }}",
	})

	assert.Equal(t, "MISSING", m.Render("MISSING", nil))
	assert.Equal(t, "line <no value> is invalid", m.Render("QUOTE_INVALID_LINE", nil))
	assert.Equal(t, "line 3 is invalid", m.Render("QUOTE_INVALID_LINE", map[string]string{"line": "3"}))
	assert.Equal(t, "{{ if .line }}", m.Render("BROKEN", map[string]string{"line": "3"}))
}
