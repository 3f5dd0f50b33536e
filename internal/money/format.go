package money

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// EUR is the default account currency.
var EUR = currency.EUR

// Format renders amount for display in tag's conventions: "12,50 €" in
// French, "€12.50" in English.
func Format(amount Cents, unit currency.Unit, tag language.Tag) string {
	p := message.NewPrinter(tag)
	symbol := p.Sprint(currency.NarrowSymbol(unit))
	digits := p.Sprint(number.Decimal(float64(amount.Abs())/100, number.Scale(2)))

	sign := ""
	if amount < 0 {
		sign = "-"
	}
	if symbolFirst(tag) {
		return sign + symbol + digits
	}
	return sign + digits + " " + symbol
}

func symbolFirst(tag language.Tag) bool {
	base, _ := tag.Base()
	english, _ := language.English.Base()
	return base == english
}
