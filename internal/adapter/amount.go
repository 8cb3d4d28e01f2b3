package adapter

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Currencies whose minor unit is not 1/100 of the major unit.
var currencyExponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0,
	"KRW": 0, "MGA": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0,
	"XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

const defaultExponent int32 = 2

var (
	maxProviderUnits = decimal.NewFromInt(math.MaxInt64)
	minProviderUnits = decimal.NewFromInt(math.MinInt64)
)

// NormalizeCurrency returns the upper-case ISO 4217 code used internally.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ProviderCurrency returns the lower-case code expected by processor APIs.
func ProviderCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}

// CurrencyExponent returns the number of minor-unit digits for currency.
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[NormalizeCurrency(currency)]; ok {
		return exp
	}
	return defaultExponent
}

// ToProviderUnits converts amount to the currency's minor units.
// Sub-minor-unit remainders are rounded half to even. Amounts whose minor
// units do not fit in an int64 are rejected with ErrInvalidPaymentData.
func ToProviderUnits(amount decimal.Decimal, currency string) (int64, error) {
	units := amount.Shift(CurrencyExponent(currency)).RoundBank(0)
	if units.GreaterThan(maxProviderUnits) || units.LessThan(minProviderUnits) {
		return 0, fmt.Errorf("%w: amount %s %s is out of range", ErrInvalidPaymentData, amount.String(), NormalizeCurrency(currency))
	}
	return units.IntPart(), nil
}

// FromProviderUnits converts minor units back to a decimal amount.
func FromProviderUnits(units int64, currency string) decimal.Decimal {
	return decimal.New(units, -CurrencyExponent(currency))
}
