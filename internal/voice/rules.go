package voice

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/louisbranch/tradebook/internal/money"
)

// Word boundaries are spelled out because \b is ASCII-only and French
// words start and end with accented letters.
const (
	wordStart = `(?:^|\s)`
	wordEnd   = `(?:$|\s)`
)

func word(pattern string) *regexp.Regexp {
	return regexp.MustCompile(wordStart + `(?:` + pattern + `)` + wordEnd)
}

// DefaultRules returns the extraction rules in application order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "intent", Apply: applyIntent},
		{Name: "email", Apply: applyEmail},
		{Name: "phone", Apply: applyPhone},
		{Name: "price", Apply: applyPrice},
		{Name: "vat", Apply: applyVAT},
		{Name: "quantity", Apply: applyQuantity},
		{Name: "date", Apply: applyDate},
		{Name: "time", Apply: applyTime},
		{Name: "client", Apply: applyClient},
	}
}

// cut removes text[start:end] and tidies the join.
func cut(text string, start, end int) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(text[:start]+" "+text[end:], " "))
}

func group(text string, loc []int, n int) string {
	if 2*n+1 >= len(loc) || loc[2*n] < 0 {
		return ""
	}
	return text[loc[2*n]:loc[2*n+1]]
}

// previousWord returns the word before offset.
func previousWord(text string, offset int) string {
	fields := strings.Fields(text[:offset])
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// nextWord returns the word starting at or after offset.
func nextWord(text string, offset int) string {
	fields := strings.Fields(text[offset:])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

var intentPatterns = []struct {
	intent Intent
	re     *regexp.Regexp
}{
	{IntentCreateClient, word(`(?:cr[ée]e[rz]?|ajoute[rz]?|enregistre[rz]?)\s+(?:un\s+|une\s+|le\s+|la\s+)?(?:nouveau\s+|nouvelle\s+)?cliente?|nouveau\s+client|nouvelle\s+cliente`)},
	{IntentAddLine, word(`(?:ajoute[rz]?|rajoute[rz]?|mets|mettre)(?:\s+une\s+ligne)?(?:\s+(?:au|sur\s+le)\s+devis|\s+(?:à\s+la|sur\s+la)\s+facture)?|nouvelle\s+ligne`)},
	{IntentCreateInvoice, word(`(?:cr[ée]e[rz]?|fais|fait|faire|[ée]tabli[rs]?|g[ée]n[èe]re[rz]?|[ée]dite[rz]?)\s+(?:une\s+|la\s+)?(?:nouvelle\s+)?facture|nouvelle\s+facture|facture[rz]?`)},
	{IntentCreateQuote, word(`(?:cr[ée]e[rz]?|fais|fait|faire|[ée]tabli[rs]?|pr[ée]pare[rz]?|r[ée]dige[rz]?)\s+(?:un\s+|le\s+)?(?:nouveau\s+)?devis|nouveau\s+devis|devis`)},
	{IntentSchedule, word(`(?:prendre|pose[rz]?|fixe[rz]?|planifie[rz]?|programme[rz]?|cale[rz]?|note[rz]?)\s+(?:un\s+|une\s+)?(?:rendez-vous|rendez\s+vous|rdv|intervention)|planifie[rz]?|programme[rz]?|rendez-vous|rendez\s+vous|rdv`)},
}

func applyIntent(text string, cmd *Command, _ time.Time) (string, bool) {
	for _, p := range intentPatterns {
		if loc := p.re.FindStringIndex(text); loc != nil {
			cmd.Intent = p.intent
			return cut(text, loc[0], loc[1]), true
		}
	}
	return text, false
}

var emailPattern = regexp.MustCompile(wordStart + `(?:(?:e-?mail|mail|courriel|adresse)\s+(?:mail\s+)?)?([a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,})` + wordEnd)

func applyEmail(text string, cmd *Command, _ time.Time) (string, bool) {
	loc := emailPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, false
	}
	cmd.Email = group(text, loc, 1)
	return cut(text, loc[0], loc[1]), true
}

var phonePattern = regexp.MustCompile(wordStart + `(?:(?:t[ée]l[ée]phone|t[ée]l|num[ée]ro|portable)\s+)?((?:\+33\s?|0\s?)[1-9](?:[\s.\-]?\d{2}){4})` + wordEnd)

func applyPhone(text string, cmd *Command, _ time.Time) (string, bool) {
	loc := phonePattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, false
	}
	cmd.Phone = formatPhone(group(text, loc, 1))
	return cut(text, loc[0], loc[1]), true
}

// formatPhone renders a French number as "06 12 34 56 78".
func formatPhone(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if strings.HasPrefix(raw, "+33") {
		digits = "0" + digits[2:]
	}
	pairs := make([]string, 0, 5)
	for i := 0; i+2 <= len(digits); i += 2 {
		pairs = append(pairs, digits[i:i+2])
	}
	return strings.Join(pairs, " ")
}

const pricePrefix = `(?:(?:[àa]|pour|au\s+prix\s+de|prix(?:\s+unitaire)?(?:\s+de)?|tarif(?:\s+de)?)\s+)?`
const priceSuffix = `(?:\s+(?:ht|hors\s+taxes?))?(?:\s+(?:le|la|du|de\s+la|de\s+l'|l'|par)\s*(` + `m[eè]tres?\s+carr[ée]s?|m2|m²|m[eè]tres?\s+cubes?|m3|m³|m[eè]tres?\s+lin[ée]aires?|ml|m[eè]tres?|heures?|journ[ée]es?|jours?|unit[ée]s?|pi[eè]ces?|kilos?|kg|litres?|forfaits?` + `))?`

var (
	priceWithCents = regexp.MustCompile(wordStart + pricePrefix + `(\d+)\s*(?:€|euros?)\s+(\d{1,2})(?:\s+centimes?)?` + priceSuffix + wordEnd)
	priceDecimal   = regexp.MustCompile(wordStart + pricePrefix + `(\d+(?:[.,]\d{1,2})?)\s*(?:€|euros?)` + priceSuffix + wordEnd)
)

func applyPrice(text string, cmd *Command, _ time.Time) (string, bool) {
	if loc := priceWithCents.FindStringSubmatchIndex(text); loc != nil {
		// "12 euros 3 mètres": the trailing digits are a quantity.
		if _, isUnit := canonicalUnit(nextWord(text, loc[5])); !isUnit {
			euros, _ := strconv.ParseInt(group(text, loc, 1), 10, 64)
			centsText := group(text, loc, 2)
			cents, _ := strconv.ParseInt(centsText, 10, 64)
			if len(centsText) == 1 {
				cents *= 10
			}
			price := money.Cents(euros*100 + cents)
			cmd.UnitPrice = &price
			setUnit(cmd, group(text, loc, 3))
			return cut(text, loc[0], loc[1]), true
		}
	}
	loc := priceDecimal.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, false
	}
	price, err := money.ParseAmount(group(text, loc, 1))
	if err != nil {
		return text, false
	}
	cmd.UnitPrice = &price
	setUnit(cmd, group(text, loc, 2))
	return cut(text, loc[0], loc[1]), true
}

func setUnit(cmd *Command, spoken string) {
	if spoken == "" || cmd.Unit != "" {
		return
	}
	if unit, ok := canonicalUnit(spoken); ok {
		cmd.Unit = unit
	}
}

var vatPatterns = []*regexp.Regexp{
	regexp.MustCompile(wordStart + `(?:avec\s+)?(?:une\s+|la\s+)?(?:tva|t\.v\.a\.?)\s*(?:[àa]\s+|de\s+)?(\d+(?:[.,]\d{1,2})?)\s*%?` + wordEnd),
	regexp.MustCompile(wordStart + `(\d+(?:[.,]\d{1,2})?)\s*%\s+(?:de\s+)?(?:tva|t\.v\.a\.?)` + wordEnd),
}

func applyVAT(text string, cmd *Command, _ time.Time) (string, bool) {
	for _, re := range vatPatterns {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		rate, err := money.ParseRate(group(text, loc, 1))
		if err != nil {
			continue
		}
		cmd.VATRate = &rate
		return cut(text, loc[0], loc[1]), true
	}
	return text, false
}

var (
	quantityPattern = regexp.MustCompile(wordStart + `(\d+(?:[.,]\d{1,3})?)\s*(` + unitPattern + `)` + wordEnd)
	flatRatePattern = word(`(?:au\s+|en\s+|un\s+|1\s+)?forfait`)
)

// timeOfDayMarkers precede an hour that is a time, not a duration.
var timeOfDayMarkers = map[string]bool{"à": true, "a": true, "vers": true, "dès": true, "des": true}

func applyQuantity(text string, cmd *Command, _ time.Time) (string, bool) {
	for _, loc := range quantityPattern.FindAllStringSubmatchIndex(text, -1) {
		unit, ok := canonicalUnit(group(text, loc, 2))
		if !ok {
			continue
		}
		prev := previousWord(text, loc[2])
		if unit == UnitHour && (cmd.Intent == IntentSchedule || timeOfDayMarkers[prev]) {
			continue
		}
		if unit == UnitDay && prev == "dans" {
			continue
		}
		q, err := money.ParseQuantity(group(text, loc, 1))
		if err != nil {
			continue
		}
		cmd.Quantity = &q
		cmd.Unit = unit
		return cut(text, loc[0], loc[1]), true
	}
	if loc := flatRatePattern.FindStringIndex(text); loc != nil {
		q := money.Units(1)
		cmd.Quantity = &q
		cmd.Unit = UnitFlatRate
		return cut(text, loc[0], loc[1]), true
	}
	return text, false
}

var months = map[string]time.Month{
	"janvier": time.January, "février": time.February, "fevrier": time.February,
	"mars": time.March, "avril": time.April, "mai": time.May, "juin": time.June,
	"juillet": time.July, "août": time.August, "aout": time.August,
	"septembre": time.September, "octobre": time.October, "novembre": time.November,
	"décembre": time.December, "decembre": time.December,
}

var weekdays = map[string]time.Weekday{
	"dimanche": time.Sunday, "lundi": time.Monday, "mardi": time.Tuesday,
	"mercredi": time.Wednesday, "jeudi": time.Thursday, "vendredi": time.Friday,
	"samedi": time.Saturday,
}

var (
	todayPattern      = word(`(?:pour\s+)?aujourd'hui`)
	afterTomorrow     = word(`(?:pour\s+)?apr[èe]s[\s-]demain`)
	tomorrowPattern   = word(`(?:pour\s+)?demain`)
	inDaysPattern     = word(`dans\s+(\d+)\s+(jours?|semaines?|mois)`)
	dayMonthPattern   = word(`(?:le\s+)?(\d{1,2}|premier|1er)\s+(janvier|f[ée]vrier|mars|avril|mai|juin|juillet|ao[uû]t|septembre|octobre|novembre|d[ée]cembre)(?:\s+(\d{4}))?`)
	numericDate       = word(`(?:le\s+)?(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?`)
	weekdayPattern    = word(`(?:ce\s+|le\s+)?(lundi|mardi|mercredi|jeudi|vendredi|samedi|dimanche)(?:\s+(prochain))?`)
	nextWeekPattern   = word(`(?:la\s+)?semaine\s+prochaine`)
	dateRuleFunctions = []func(text string, today time.Time) (time.Time, []int, bool){
		matchRelativeDay(todayPattern, 0),
		matchRelativeDay(afterTomorrow, 2),
		matchRelativeDay(tomorrowPattern, 1),
		matchInDays,
		matchDayMonth,
		matchNumericDate,
		matchWeekday,
		matchNextWeek,
	}
)

func applyDate(text string, cmd *Command, now time.Time) (string, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, match := range dateRuleFunctions {
		date, loc, ok := match(text, today)
		if !ok {
			continue
		}
		cmd.Date = &date
		return cut(text, loc[0], loc[1]), true
	}
	return text, false
}

func matchRelativeDay(re *regexp.Regexp, days int) func(string, time.Time) (time.Time, []int, bool) {
	return func(text string, today time.Time) (time.Time, []int, bool) {
		loc := re.FindStringIndex(text)
		if loc == nil {
			return time.Time{}, nil, false
		}
		return today.AddDate(0, 0, days), loc, true
	}
}

func matchInDays(text string, today time.Time) (time.Time, []int, bool) {
	loc := inDaysPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return time.Time{}, nil, false
	}
	n, err := strconv.Atoi(group(text, loc, 1))
	if err != nil {
		return time.Time{}, nil, false
	}
	switch unit := group(text, loc, 2); {
	case strings.HasPrefix(unit, "semaine"):
		return today.AddDate(0, 0, 7*n), loc, true
	case unit == "mois":
		return today.AddDate(0, n, 0), loc, true
	default:
		return today.AddDate(0, 0, n), loc, true
	}
}

func matchDayMonth(text string, today time.Time) (time.Time, []int, bool) {
	loc := dayMonthPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return time.Time{}, nil, false
	}
	day := 1
	if d := group(text, loc, 1); d != "premier" && d != "1er" {
		day, _ = strconv.Atoi(d)
	}
	month := months[group(text, loc, 2)]
	year, _ := strconv.Atoi(group(text, loc, 3))
	date, ok := calendarDate(today, year, month, day)
	return date, loc, ok
}

func matchNumericDate(text string, today time.Time) (time.Time, []int, bool) {
	loc := numericDate.FindStringSubmatchIndex(text)
	if loc == nil {
		return time.Time{}, nil, false
	}
	day, _ := strconv.Atoi(group(text, loc, 1))
	month, _ := strconv.Atoi(group(text, loc, 2))
	if month < 1 || month > 12 {
		return time.Time{}, nil, false
	}
	year := 0
	if y := group(text, loc, 3); y != "" {
		year, _ = strconv.Atoi(y)
		if len(y) == 2 {
			year += 2000
		}
	}
	date, ok := calendarDate(today, year, time.Month(month), day)
	return date, loc, ok
}

// calendarDate builds a date; without a year it picks the next occurrence
// on or after today.
func calendarDate(today time.Time, year int, month time.Month, day int) (time.Time, bool) {
	explicit := year != 0
	if !explicit {
		year = today.Year()
	}
	date := time.Date(year, month, day, 0, 0, 0, 0, today.Location())
	if date.Day() != day || date.Month() != month {
		return time.Time{}, false
	}
	if !explicit && date.Before(today) {
		date = time.Date(year+1, month, day, 0, 0, 0, 0, today.Location())
		if date.Day() != day {
			return time.Time{}, false
		}
	}
	return date, true
}

// matchWeekday resolves a weekday to its next occurrence after today.
// "prochain" does not skip a week.
func matchWeekday(text string, today time.Time) (time.Time, []int, bool) {
	loc := weekdayPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return time.Time{}, nil, false
	}
	target := weekdays[group(text, loc, 1)]
	days := (int(target) - int(today.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDate(0, 0, days), loc, true
}

func matchNextWeek(text string, today time.Time) (time.Time, []int, bool) {
	loc := nextWeekPattern.FindStringIndex(text)
	if loc == nil {
		return time.Time{}, nil, false
	}
	days := (int(time.Monday) - int(today.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDate(0, 0, days), loc, true
}

var (
	hourPattern = word(`(?:(?:[àa]|vers|dès|des|pour)\s+)?(\d{1,2})\s*(?:h|heures?)(?:\s*(\d{2})|\s+(et\s+demie|et\s+quart|moins\s+le\s+quart))?`)
	noonPattern = word(`(?:(?:[àa]|vers)\s+)?(midi|minuit)(?:\s+(et\s+demie|et\s+quart))?`)
)

func applyTime(text string, cmd *Command, _ time.Time) (string, bool) {
	if loc := hourPattern.FindStringSubmatchIndex(text); loc != nil {
		hour, _ := strconv.Atoi(group(text, loc, 1))
		minute := 0
		if m := group(text, loc, 2); m != "" {
			minute, _ = strconv.Atoi(m)
		}
		hour, minute = applyFraction(hour, minute, group(text, loc, 3))
		if hour >= 0 && hour < 24 && minute < 60 {
			cmd.Time = formatClock(hour, minute)
			return cut(text, loc[0], loc[1]), true
		}
	}
	if loc := noonPattern.FindStringSubmatchIndex(text); loc != nil {
		hour := 12
		if group(text, loc, 1) == "minuit" {
			hour = 0
		}
		hour, minute := applyFraction(hour, 0, group(text, loc, 2))
		cmd.Time = formatClock(hour, minute)
		return cut(text, loc[0], loc[1]), true
	}
	return text, false
}

func applyFraction(hour, minute int, fraction string) (int, int) {
	switch {
	case strings.HasSuffix(fraction, "demie"):
		return hour, 30
	case strings.HasPrefix(fraction, "et"):
		return hour, 15
	case strings.HasPrefix(fraction, "moins"):
		return hour - 1, 45
	}
	return hour, minute
}

func formatClock(hour, minute int) string {
	return strconv.Itoa(hour/10) + strconv.Itoa(hour%10) + ":" + strconv.Itoa(minute/10) + strconv.Itoa(minute%10)
}

const nameWord = `[a-zà-öø-ÿ][a-zà-öø-ÿ'\-]*`

var (
	civilityPattern = word(`(?:(?:pour|chez|client|cliente|de)\s+)?(monsieur|madame|mademoiselle|mme|mlle|mr)\s+(` + nameWord + `)`)
	companyPattern  = word(`(?:pour|chez|client)\s+(?:la\s+|l')?(soci[ée]t[ée]|entreprise|sarl|sas|sci)\s+(` + nameWord + `)`)
	bareClient      = word(`(?:(?:chez\s+)?(?:le\s+|la\s+)?cliente?|chez)\s+(` + nameWord + `)`)
	civilities      = map[string]string{
		"monsieur": "Monsieur", "mr": "Monsieur",
		"madame": "Madame", "mme": "Madame",
		"mademoiselle": "Mademoiselle", "mlle": "Mademoiselle",
	}
	notNames = map[string]bool{
		"le": true, "la": true, "les": true, "lui": true, "moi": true, "nous": true,
		"eux": true, "elle": true, "un": true, "une": true, "des": true, "du": true,
		"de": true, "l'": true,
	}
	titleCaser = cases.Title(language.French)
)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func applyClient(text string, cmd *Command, _ time.Time) (string, bool) {
	if loc := civilityPattern.FindStringSubmatchIndex(text); loc != nil {
		cmd.Client = civilities[group(text, loc, 1)] + " " + titleCase(group(text, loc, 2))
		return cut(text, loc[0], loc[1]), true
	}
	if loc := companyPattern.FindStringSubmatchIndex(text); loc != nil {
		cmd.Client = titleCase(group(text, loc, 1) + " " + group(text, loc, 2))
		return cut(text, loc[0], loc[1]), true
	}
	for _, loc := range bareClient.FindAllStringSubmatchIndex(text, -1) {
		name := group(text, loc, 1)
		if notNames[name] {
			continue
		}
		cmd.Client = titleCase(name)
		return cut(text, loc[0], loc[1]), true
	}
	return text, false
}
