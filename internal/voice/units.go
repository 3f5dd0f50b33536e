package voice

import (
	"regexp"
	"strings"
)

// Unit codes shared with the trade catalog.
const (
	UnitMeter       = "m"
	UnitSquareMeter = "m2"
	UnitCubicMeter  = "m3"
	UnitLinearMeter = "ml"
	UnitHour        = "h"
	UnitDay         = "jour"
	UnitPiece       = "u"
	UnitKilogram    = "kg"
	UnitLiter       = "l"
	UnitFlatRate    = "forfait"
)

type unitAlias struct {
	pattern string
	unit    string
}

// unitAliases is ordered longest first so "mètres carrés" wins over "mètres".
var unitAliases = []unitAlias{
	{`m[eè]tres?\s+carr[ée]s?|m2|m²`, UnitSquareMeter},
	{`m[eè]tres?\s+cubes?|m3|m³`, UnitCubicMeter},
	{`m[eè]tres?\s+lin[ée]aires?|ml`, UnitLinearMeter},
	{`m[eè]tres?|m`, UnitMeter},
	{`heures?|h`, UnitHour},
	{`journ[ée]es?|jours?`, UnitDay},
	{`unit[ée]s?|pi[eè]ces?`, UnitPiece},
	{`kilos?|kilogrammes?|kg`, UnitKilogram},
	{`litres?`, UnitLiter},
	{`forfaits?`, UnitFlatRate},
}

var (
	unitPattern = func() string {
		alts := make([]string, 0, len(unitAliases))
		for _, alias := range unitAliases {
			alts = append(alts, alias.pattern)
		}
		return strings.Join(alts, "|")
	}()
	unitMatchers = func() []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(unitAliases))
		for _, alias := range unitAliases {
			out = append(out, regexp.MustCompile(`^(?:`+alias.pattern+`)$`))
		}
		return out
	}()
	unitWords = map[string]bool{
		"euro": true, "euros": true, "€": true,
		"semaine": true, "semaines": true, "mois": true, "an": true, "ans": true,
	}
)

// canonicalUnit maps a spoken unit to its code.
func canonicalUnit(spoken string) (string, bool) {
	spoken = spaceRun.ReplaceAllString(strings.TrimSpace(spoken), " ")
	for i, re := range unitMatchers {
		if re.MatchString(spoken) {
			return unitAliases[i].unit, true
		}
	}
	return "", false
}

// isUnitWord reports whether tok names a unit, a currency or a duration.
func isUnitWord(tok string) bool {
	if unitWords[tok] {
		return true
	}
	_, ok := canonicalUnit(tok)
	return ok
}
