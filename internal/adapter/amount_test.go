package adapter

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrencyExponent(t *testing.T) {
	assert.Equal(t, int32(2), CurrencyExponent("usd"))
	assert.Equal(t, int32(2), CurrencyExponent("EUR"))
	assert.Equal(t, int32(0), CurrencyExponent("jpy"))
	assert.Equal(t, int32(3), CurrencyExponent(" KWD "))
	assert.Equal(t, int32(2), CurrencyExponent("XYZ"), "unknown currencies fall back to two digits")
}

func TestToProviderUnits(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     int64
	}{
		{"10.00", "usd", 1000},
		{"24.24", "USD", 2424},
		{"0.015", "usd", 2},
		{"0.025", "usd", 2},
		{"1500", "JPY", 1500},
		{"1.234", "KWD", 1234},
	}
	for _, tc := range cases {
		t.Run(tc.amount+tc.currency, func(t *testing.T) {
			got, err := ToProviderUnits(decimal.RequireFromString(tc.amount), tc.currency)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToProviderUnits_OutOfRange(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
	}{
		{"92233720368547758.08", "USD"},
		{"184467440737095516.17", "usd"},
		{"9223372036854775808", "JPY"},
		{"9223372036854775.808", "KWD"},
		{"-92233720368547758.09", "USD"},
	}
	for _, tc := range cases {
		t.Run(tc.amount+tc.currency, func(t *testing.T) {
			_, err := ToProviderUnits(decimal.RequireFromString(tc.amount), tc.currency)
			assert.ErrorIs(t, err, ErrInvalidPaymentData)
		})
	}

	got, err := ToProviderUnits(decimal.RequireFromString("92233720368547758.07"), "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got)
}

func TestFromProviderUnits(t *testing.T) {
	assert.True(t, decimal.RequireFromString("10.99").Equal(FromProviderUnits(1099, "usd")))
	assert.True(t, decimal.RequireFromString("1500").Equal(FromProviderUnits(1500, "jpy")))
	assert.True(t, decimal.RequireFromString("1.234").Equal(FromProviderUnits(1234, "kwd")))
}

func TestProviderUnitsRoundTrip(t *testing.T) {
	for _, currency := range []string{"usd", "jpy", "kwd", "eur", "clp", "bhd"} {
		for _, units := range []int64{0, 1, 99, 1000, 123456789} {
			got, err := ToProviderUnits(FromProviderUnits(units, currency), currency)
			require.NoError(t, err)
			assert.Equal(t, units, got, "currency %s units %d", currency, units)
		}
	}
}

func TestCurrencyCodeCase(t *testing.T) {
	assert.Equal(t, "USD", NormalizeCurrency("usd"))
	assert.Equal(t, "usd", ProviderCurrency("USD"))
}

func TestTransactionKind(t *testing.T) {
	var k TransactionKind
	assert.NoError(t, k.UnmarshalText([]byte("CAPTURE")))
	assert.Equal(t, KindCapture, k)
	assert.Error(t, k.UnmarshalText([]byte("settle")))
	assert.False(t, TransactionKind("settle").Valid())
}

func TestGatewayConfigParam(t *testing.T) {
	cfg := GatewayConfig{ConnectionParams: map[string]string{ParamPrivateKey: "sk_test"}}
	key, err := cfg.Param(ParamPrivateKey)
	assert.NoError(t, err)
	assert.Equal(t, "sk_test", key)

	_, err = cfg.Param(ParamPublicKey)
	assert.ErrorIs(t, err, ErrMissingConnectionParam)
}
