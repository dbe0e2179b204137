package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies are charged in whole units by the payment provider.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true,
	"mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true,
	"xof": true, "xpf": true,
}

// ToMinorUnits converts a major-unit amount (9.99) to minor units (999), rounding half up.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

// FormatMinorUnits renders minor units for display, e.g. 1000 usd -> "10.00 USD".
func FormatMinorUnits(amount int64, currency string) string {
	places := int32(2)
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		places = 0
	}
	return decimal.New(amount, -places).StringFixed(places) + " " + strings.ToUpper(currency)
}
