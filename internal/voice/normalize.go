package voice

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	spaceRun        = regexp.MustCompile(`\s+`)
	softPunct       = regexp.MustCompile(`[;:!?"«»()]`)
	timeColon       = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	commaNotDecimal = regexp.MustCompile(`,(\D|$)|(^|\D),`)
	periodNotInWord = regexp.MustCompile(`\.(\s|$)`)
	spokenAt        = regexp.MustCompile(`\s*\barobase\b\s*`)
	spokenDomainDot = regexp.MustCompile(`(@[a-z0-9_\-.]+)\s+point\s+([a-z0-9\-]+)`)
	spokenLocalDot  = regexp.MustCompile(`([a-z0-9_\-.]+)\s+point\s+([a-z0-9_\-.]+@)`)
	spokenComma     = regexp.MustCompile(`(\d)\s+virgule\s+(\d)`)
	spokenDash      = regexp.MustCompile(`\s*\btiret\b\s*`)
)

// normalize lower-cases the transcript, rewrites spoken punctuation and
// French number words, and collapses whitespace.
func normalize(raw string) string {
	s := strings.ToLower(raw)
	s = strings.NewReplacer("\u2019", "'", "\u2018", "'", "\u00a0", " ", "\u202f", " ").Replace(s)
	s = timeColon.ReplaceAllString(s, "${1}h${2}")
	s = softPunct.ReplaceAllString(s, " ")
	s = commaNotDecimal.ReplaceAllString(s, "$2 $1")
	s = periodNotInWord.ReplaceAllString(s, " $1")
	s = spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")

	s = convertNumberWords(s)

	s = spokenComma.ReplaceAllString(s, "$1,$2")
	s = spokenAt.ReplaceAllString(s, "@")
	s = spokenDash.ReplaceAllString(s, "-")
	for _, re := range []*regexp.Regexp{spokenDomainDot, spokenLocalDot} {
		for {
			next := re.ReplaceAllString(s, "$1.$2")
			if next == s {
				break
			}
			s = next
		}
	}
	return spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

type numberKind int

const (
	kindZero numberKind = iota + 1
	kindUnit
	kindTeen
	kindTens
	kindHundred
	kindThousand
)

type numberWord struct {
	value int
	kind  numberKind
}

var numberWords = map[string]numberWord{
	"zéro":      {0, kindZero},
	"zero":      {0, kindZero},
	"un":        {1, kindUnit},
	"une":       {1, kindUnit},
	"deux":      {2, kindUnit},
	"trois":     {3, kindUnit},
	"quatre":    {4, kindUnit},
	"cinq":      {5, kindUnit},
	"six":       {6, kindUnit},
	"sept":      {7, kindUnit},
	"huit":      {8, kindUnit},
	"neuf":      {9, kindUnit},
	"dix":       {10, kindTeen},
	"onze":      {11, kindTeen},
	"douze":     {12, kindTeen},
	"treize":    {13, kindTeen},
	"quatorze":  {14, kindTeen},
	"quinze":    {15, kindTeen},
	"seize":     {16, kindTeen},
	"vingt":     {20, kindTens},
	"vingts":    {20, kindTens},
	"trente":    {30, kindTens},
	"quarante":  {40, kindTens},
	"cinquante": {50, kindTens},
	"soixante":  {60, kindTens},
	"cent":      {100, kindHundred},
	"cents":     {100, kindHundred},
	"mille":     {1000, kindThousand},
}

// ambiguous number words are only read as numbers next to other numbers or
// before a unit: "un devis", "un chauffe-eau neuf".
var ambiguousNumberWords = map[string]bool{
	"un":   true,
	"une":  true,
	"neuf": true,
}

// numberBuilder accumulates one French compound number.
type numberBuilder struct {
	active   bool
	thousand int
	hundreds int
	low      int
	last     numberKind
	lastWord string
}

func (b *numberBuilder) value() int {
	return b.thousand + b.hundreds + b.low
}

// accepts reports whether w continues the current number.
func (b *numberBuilder) accepts(word string, w numberWord) bool {
	if !b.active {
		return true
	}
	switch w.kind {
	case kindZero:
		return false
	case kindUnit:
		switch b.last {
		case kindHundred, kindThousand:
			return true
		case kindTens:
			return b.low%10 == 0
		case kindTeen:
			return b.lastWord == "dix" && (b.low == 10 || b.low == 70 || b.low == 90)
		}
		return false
	case kindTeen:
		switch b.last {
		case kindHundred, kindThousand:
			return true
		case kindTens:
			return b.low == 60 || b.low == 80
		}
		return false
	case kindTens:
		switch b.last {
		case kindHundred, kindThousand:
			return b.low == 0
		case kindUnit:
			return b.low == 4 && strings.HasPrefix(word, "vingt")
		}
		return false
	case kindHundred:
		return b.hundreds == 0 && b.low < 10 && b.last != kindTens
	case kindThousand:
		return b.thousand == 0
	}
	return false
}

func (b *numberBuilder) add(word string, w numberWord) {
	b.active = true
	switch w.kind {
	case kindHundred:
		if b.low == 0 {
			b.low = 1
		}
		b.hundreds = b.low * 100
		b.low = 0
	case kindThousand:
		n := b.hundreds + b.low
		if n == 0 {
			n = 1
		}
		b.thousand = n * 1000
		b.hundreds, b.low = 0, 0
	case kindTens:
		if b.last == kindUnit && b.low == 4 {
			b.low = 80
		} else {
			b.low += w.value
		}
	default:
		b.low += w.value
	}
	b.last = w.kind
	b.lastWord = word
}

// convertNumberWords rewrites runs of French number words into digits.
func convertNumberWords(s string) string {
	tokens := strings.Split(s, " ")
	out := make([]string, 0, len(tokens))
	var b numberBuilder

	flush := func() {
		if b.active {
			out = append(out, strconv.Itoa(b.value()))
		}
		b = numberBuilder{}
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if tok == "pour" && i+1 < len(tokens) && tokens[i+1] == "cent" && (b.active || lastIsDigits(out)) {
			flush()
			out = append(out, "%")
			i++
			continue
		}
		if tok == "et" && b.active && i+1 < len(tokens) {
			next := tokens[i+1]
			if (next == "un" || next == "une" || next == "onze") && b.last == kindTens {
				continue
			}
		}

		parts, ok := numberParts(tok)
		if !ok {
			flush()
			out = append(out, tok)
			continue
		}

		if len(parts) == 1 && ambiguousNumberWords[parts[0]] && !b.active && !lastIsDigits(out) {
			next := ""
			if i+1 < len(tokens) {
				next = tokens[i+1]
			}
			if !isUnitWord(next) && !isNumberToken(next) {
				out = append(out, tok)
				continue
			}
		}

		for _, part := range parts {
			w := numberWords[part]
			if w.kind == kindZero {
				flush()
				out = append(out, "0")
				continue
			}
			if !b.accepts(part, w) {
				flush()
			}
			b.add(part, w)
		}
	}
	flush()
	return strings.Join(out, " ")
}

// numberParts splits hyphenated compounds like "quatre-vingt-dix" when every
// part is a number word.
func numberParts(tok string) ([]string, bool) {
	if tok == "" {
		return nil, false
	}
	parts := strings.Split(tok, "-")
	kept := parts[:0]
	for _, part := range parts {
		if part == "et" {
			continue
		}
		if _, ok := numberWords[part]; !ok {
			return nil, false
		}
		kept = append(kept, part)
	}
	return kept, len(kept) > 0
}

func isNumberToken(tok string) bool {
	if _, ok := numberParts(tok); ok {
		return true
	}
	return isDigits(tok)
}

func lastIsDigits(out []string) bool {
	return len(out) > 0 && isDigits(out[len(out)-1])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
