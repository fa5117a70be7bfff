package netcommerce

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type currency struct {
	code       string
	minorUnits int32
}

// currencies maps ISO currency symbols to the numeric codes NetCommerce accepts.
var currencies = map[string]currency{
	"USD": {code: "840", minorUnits: 2},
	"LBP": {code: "422", minorUnits: 0},
}

// CurrencyCode returns the numeric code for symbol.
func CurrencyCode(symbol string) (string, error) {
	c, ok := lookupCurrency(symbol)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, symbol)
	}
	return c.code, nil
}

// FormatAmount renders amount the way it is both displayed to and signed for
// NetCommerce: zero-decimal currencies as a bare integer, the rest with exactly
// two decimals. No grouping separators are ever emitted.
func FormatAmount(amount decimal.Decimal, symbol string) (string, error) {
	c, ok := lookupCurrency(symbol)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, symbol)
	}
	return amount.StringFixed(c.minorUnits), nil
}

// SupportedCurrencies lists the currency symbols accepted by the gateway.
func SupportedCurrencies() []string {
	return []string{"USD", "LBP"}
}

func lookupCurrency(symbol string) (currency, bool) {
	c, ok := currencies[strings.ToUpper(strings.TrimSpace(symbol))]
	return c, ok
}
