package money

import (
	"fmt"
	"math"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders minor-unit amounts as locale-aware currency strings
type Formatter struct {
	printer *message.Printer
}

// NewFormatter builds a Formatter for the given BCP 47 locale, e.g. "en-GB"
func NewFormatter(locale string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return &Formatter{printer: message.NewPrinter(tag)}, nil
}

// MinorUnits renders an amount expressed in a currency's minor units (pence,
// cents) as a display string. The currency's own scale decides the decimal
// places: 12345 GBP becomes "£123.45" while 6345 JPY, a zero-decimal
// currency, becomes "¥6,345".
func (f *Formatter) MinorUnits(amount int64, code string) (string, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("unknown currency %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	major := float64(amount) / math.Pow10(scale)

	// The currency package joins symbol and value with a space and no digit
	// grouping, so render the two halves separately and concatenate.
	symbol := f.printer.Sprintf("%v", currency.NarrowSymbol(unit))
	value := f.printer.Sprintf("%v", number.Decimal(major, number.Scale(scale)))
	return symbol + value, nil
}
