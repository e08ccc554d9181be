package vat_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/swellway/swellway-api/internal/vat"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestComputeKnownCountries(t *testing.T) {
	table := vat.NewTable(nil)

	tests := []struct {
		name    string
		amount  string
		country string
		rate    string
		tax     string
		total   string
	}{
		{"german standard rate", "100", "DE", "0.19", "19", "119"},
		{"french rounding up", "33.33", "FR", "0.2", "6.67", "40"},
		{"zero amount", "0", "ES", "0.21", "0", "0"},
		{"portuguese retreat deposit", "350.50", "PT", "0.23", "80.62", "431.12"},
		{"dutch single cent", "0.01", "NL", "0.21", "0", "0.01"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := table.Compute(dec(t, tc.amount), tc.country)
			require.True(t, got.Rate.Equal(dec(t, tc.rate)), "rate: got %s", got.Rate)
			require.True(t, got.TaxAmount.Equal(dec(t, tc.tax)), "tax: got %s", got.TaxAmount)
			require.True(t, got.Total.Equal(dec(t, tc.total)), "total: got %s", got.Total)
		})
	}
}

func TestComputeUnknownCountryFailsOpen(t *testing.T) {
	table := vat.NewTable(nil)
	for _, code := range []string{"US", "XX", ""} {
		got := table.Compute(dec(t, "250"), code)
		require.True(t, got.Rate.IsZero(), "code %q", code)
		require.True(t, got.TaxAmount.IsZero(), "code %q", code)
		require.True(t, got.Total.Equal(dec(t, "250")), "code %q", code)
	}
}

func TestRateLookupIsCaseSensitive(t *testing.T) {
	table := vat.NewTable(nil)
	require.True(t, table.Rate("de").IsZero())
	require.True(t, table.Rate("DE").Equal(dec(t, "0.19")))
}

func TestRoundingHalfAwayFromZero(t *testing.T) {
	// 0.19 * 26.25 = 4.9875: the half-cent boundary must round up, not to even.
	table := vat.NewTable(nil)
	got := table.Compute(dec(t, "26.25"), "DE")
	require.True(t, got.TaxAmount.Equal(dec(t, "4.99")), "got %s", got.TaxAmount)
	require.True(t, got.Total.Equal(dec(t, "31.24")), "got %s", got.Total)
}

func TestIndependentRounding(t *testing.T) {
	// Tax and total are rounded separately; the total is derived from the
	// already-rounded tax amount, not from a single rounding pass.
	table := vat.NewTable(nil)
	amount := dec(t, "10.035")
	got := table.Compute(amount, "FR")
	require.True(t, got.TaxAmount.Equal(dec(t, "2.01")), "got %s", got.TaxAmount)
	require.True(t, got.Total.Equal(amount.Add(got.TaxAmount).Round(2)), "got %s", got.Total)
}

func TestComputeIsIdempotent(t *testing.T) {
	table := vat.NewTable(nil)
	first := table.Compute(dec(t, "123.45"), "IE")
	second := table.Compute(dec(t, "123.45"), "IE")
	require.True(t, first.Rate.Equal(second.Rate))
	require.True(t, first.TaxAmount.Equal(second.TaxAmount))
	require.True(t, first.Total.Equal(second.Total))
}

func TestOverridesReplaceAndExtend(t *testing.T) {
	table := vat.NewTable(map[string]string{
		"DE": "0.07",      // reduced rate override
		"CH": "0.081",     // new country
		"XX": "not-a-rate", // skipped
	})
	require.True(t, table.Rate("DE").Equal(dec(t, "0.07")))
	require.True(t, table.Rate("CH").Equal(dec(t, "0.081")))
	require.True(t, table.Rate("XX").IsZero())
	// untouched defaults survive
	require.True(t, table.Rate("FR").Equal(dec(t, "0.2")))
}
