package fines

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/erazemk/knjiznica/internal/model"
)

// Formatter renders amounts in the library's configured currency.
type Formatter struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewFormatter parses an ISO 4217 currency code such as "EUR".
func NewFormatter(code string) (*Formatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("parsing currency %q: %w", code, err)
	}
	return &Formatter{
		unit:    unit,
		printer: message.NewPrinter(language.English),
	}, nil
}

// Code returns the ISO currency code.
func (f *Formatter) Code() string {
	return f.unit.String()
}

// Format renders m with the currency symbol, e.g. "€ 30.00".
func (f *Formatter) Format(m model.Money) string {
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(m.Float())))
}
