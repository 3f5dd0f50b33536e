// Package voice turns spoken French commands into structured fields.
//
// A transcript is normalized (case, spoken punctuation, number words) and
// then passed through an ordered list of rules. Each rule extracts at most
// one field and removes the text it consumed; whatever is left at the end
// becomes the next unfilled field, usually the line description.
package voice

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/louisbranch/tradebook/internal/money"
)

// Intent is the action a command asks for.
type Intent string

const (
	IntentCreateQuote   Intent = "create_quote"
	IntentAddLine       Intent = "add_line"
	IntentCreateClient  Intent = "create_client"
	IntentSchedule      Intent = "schedule"
	IntentCreateInvoice Intent = "create_invoice"
	IntentUnknown       Intent = "unknown"
)

// Command is the structured result of parsing one transcript.
type Command struct {
	Intent      Intent          `json:"intent"`
	Client      string          `json:"client,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Email       string          `json:"email,omitempty"`
	Quantity    *money.Quantity `json:"quantity_milli,omitempty"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   *money.Cents    `json:"unit_price_cents,omitempty"`
	VATRate     *money.Rate     `json:"vat_rate_bp,omitempty"`
	Date        *time.Time      `json:"date,omitempty"`
	Time        string          `json:"time,omitempty"`
	Description string          `json:"description,omitempty"`
	Raw         string          `json:"raw"`
	// Matched lists the rules that extracted something, in order.
	Matched []string `json:"matched,omitempty"`
}

// At combines Date and Time. It reports false when no date was heard.
func (c Command) At() (time.Time, bool) {
	if c.Date == nil {
		return time.Time{}, false
	}
	d := *c.Date
	hour, minute := 0, 0
	if c.Time != "" {
		if t, err := time.Parse("15:04", c.Time); err == nil {
			hour, minute = t.Hour(), t.Minute()
		}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location()), true
}

// Rule extracts one field from the working text. Apply returns the text
// left after removing the consumed span, and whether it matched.
type Rule struct {
	Name  string
	Apply func(text string, cmd *Command, now time.Time) (string, bool)
}

// Parser applies rules in order and finishes with the fallback.
type Parser struct {
	rules []Rule
}

// NewParser builds a parser over rules. With no rules it uses DefaultRules.
func NewParser(rules ...Rule) *Parser {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Parser{rules: rules}
}

var defaultParser = NewParser()

// Parse parses transcript relative to now with the default rules. It never
// fails: unmatched text degrades to the description.
func Parse(transcript string, now time.Time) Command {
	return defaultParser.Parse(transcript, now)
}

// Parse runs every rule over transcript.
func (p *Parser) Parse(transcript string, now time.Time) Command {
	cmd := Command{Intent: IntentUnknown, Raw: transcript}
	text := normalize(transcript)
	for _, rule := range p.rules {
		var ok bool
		text, ok = rule.Apply(text, &cmd, now)
		if ok {
			cmd.Matched = append(cmd.Matched, rule.Name)
		}
	}
	fallback(text, &cmd)
	return cmd
}

// fallback assigns the leftover text to the next empty field.
func fallback(text string, cmd *Command) {
	if len(cmd.Matched) == 0 {
		cmd.Description = strings.TrimSpace(cmd.Raw)
		return
	}
	rest := stripFillers(text)
	if rest == "" {
		return
	}
	if cmd.Intent == IntentCreateClient && cmd.Client == "" {
		cmd.Client = titleCase(rest)
		return
	}
	cmd.Description = upperFirst(rest)
}

var fillerPhrases = []string{"s'il te plaît", "s'il te plait", "s'il vous plaît", "s'il vous plait"}

var fillerWords = map[string]bool{
	"le": true, "la": true, "les": true, "l'": true, "de": true, "du": true,
	"des": true, "d'": true, "et": true, "pour": true, "avec": true, "un": true,
	"une": true, "euh": true, "heu": true, "alors": true, "donc": true,
	"stp": true, "svp": true, "merci": true, "au": true, "aux": true,
	"à": true, "a": true, "sur": true, "en": true, "ok": true, "bon": true,
}

// stripFillers drops filler words at the edges and hesitations anywhere.
func stripFillers(text string) string {
	for _, phrase := range fillerPhrases {
		text = strings.ReplaceAll(text, phrase, " ")
	}
	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if w == "euh" || w == "heu" {
			continue
		}
		kept = append(kept, w)
	}
	words = kept
	for len(words) > 0 && fillerWords[words[0]] {
		words = words[1:]
	}
	for len(words) > 0 && fillerWords[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
