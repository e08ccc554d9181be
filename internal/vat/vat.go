// Package vat computes value-added tax for bookings by billing country.
//
// Rates are a fixed table keyed by ISO 3166-1 alpha-2 country codes. Lookup is
// case-sensitive and fail-open: an unknown code yields a zero rate rather than
// an error, so callers are responsible for flagging countries that should have
// been taxed. Tax and total are rounded to two decimals independently, half
// away from zero.
package vat

import (
	"github.com/shopspring/decimal"
)

// defaultRates covers the EU/EEA markets Swellway sells into. Adding a country
// means adding an entry here (or via the VAT_RATES override) and redeploying.
var defaultRates = map[string]string{
	"AT": "0.20",
	"BE": "0.21",
	"DE": "0.19",
	"DK": "0.25",
	"ES": "0.21",
	"FR": "0.20",
	"GB": "0.20",
	"IE": "0.23",
	"IT": "0.22",
	"NL": "0.21",
	"PT": "0.23",
}

// Result is the immutable outcome of a single tax computation.
type Result struct {
	Rate      decimal.Decimal `json:"rate"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// Table maps country codes to tax rates. Built once at startup, never mutated.
type Table struct {
	rates map[string]decimal.Decimal
}

// NewTable builds a rate table from the compiled-in defaults, with entries
// replaced or added from overrides. Override values that fail to parse as
// decimals are skipped.
func NewTable(overrides map[string]string) *Table {
	rates := make(map[string]decimal.Decimal, len(defaultRates)+len(overrides))
	for code, raw := range defaultRates {
		if d, err := decimal.NewFromString(raw); err == nil {
			rates[code] = d
		}
	}
	for code, raw := range overrides {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		rates[code] = d
	}
	return &Table{rates: rates}
}

// Rate returns the tax rate for the given country code, or zero when the code
// is not in the table. No normalization is applied to the code.
func (t *Table) Rate(countryCode string) decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	if rate, ok := t.rates[countryCode]; ok {
		return rate
	}
	return decimal.Zero
}

// Compute derives the tax amount and total for the given base amount and
// billing country. Pure and safe for concurrent use. TaxAmount and Total are
// each rounded to two decimals on their own, so Total can differ by up to one
// cent from rounding amount*(1+rate) in a single step.
func (t *Table) Compute(amount decimal.Decimal, countryCode string) Result {
	rate := t.Rate(countryCode)
	taxAmount := amount.Mul(rate).Round(2)
	total := amount.Add(taxAmount).Round(2)
	return Result{Rate: rate, TaxAmount: taxAmount, Total: total}
}
