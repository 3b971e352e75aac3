package generic

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY - ISO 4217 code and caller-owned rate tables
// =============================================================================

// Currency is an upper-case ISO 4217 code.
type Currency string

const USD Currency = "USD"

// NormalizeCurrency trims and upper-cases a code.
func NormalizeCurrency(code string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(code)))
}

// CurrencyRate is one row of the rate table: units of Code per 1 USD.
type CurrencyRate struct {
	Code      Currency        `json:"code"`
	RateToUSD decimal.Decimal `json:"rate_to_usd"`
}

// Rates maps a code to its rate-to-USD. It is a read-only snapshot owned by
// the caller and passed into every conversion; the engine keeps no copy.
// NewRates upper-cases keys; hand-built lower-case keys still resolve.
type Rates map[Currency]decimal.Decimal

// NewRates builds a validated table: one positive rate per code and USD
// pinned at exactly 1. USD is added when absent.
func NewRates(rows []CurrencyRate) (Rates, error) {
	rates := make(Rates, len(rows)+1)
	for _, row := range rows {
		if err := ValidateRate(row); err != nil {
			return nil, err
		}
		code := NormalizeCurrency(string(row.Code))
		if _, dup := rates[code]; dup {
			return nil, &RateError{Code: code, Message: "duplicate currency code"}
		}
		rates[code] = row.RateToUSD
	}
	rates[USD] = decimal.NewFromInt(1)
	return rates, nil
}

// ValidateRate checks a single row: non-empty code, positive rate, USD = 1.
func ValidateRate(row CurrencyRate) error {
	code := NormalizeCurrency(string(row.Code))
	if code == "" {
		return &RateError{Code: row.Code, Message: "empty currency code"}
	}
	if !row.RateToUSD.IsPositive() {
		return &RateError{Code: code, Message: "rate must be positive"}
	}
	if code == USD && !row.RateToUSD.Equal(decimal.NewFromInt(1)) {
		return &RateError{Code: code, Message: "USD rate is always 1"}
	}
	return nil
}

// Rows returns the table sorted by code.
func (r Rates) Rows() []CurrencyRate {
	rows := make([]CurrencyRate, 0, len(r))
	for code, rate := range r {
		rows = append(rows, CurrencyRate{Code: code, RateToUSD: rate})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	return rows
}

// rateFor resolves a code; USD is implicitly 1 even when absent.
func (r Rates) rateFor(code Currency) (decimal.Decimal, error) {
	code = NormalizeCurrency(string(code))
	if code == USD {
		return decimal.NewFromInt(1), nil
	}
	rate, ok := r[code]
	if !ok {
		rate, ok = r.lookupUnnormalized(code)
	}
	if !ok {
		return decimal.Zero, &UnknownCurrencyError{Code: code}
	}
	if !rate.IsPositive() {
		return decimal.Zero, &RateError{Code: code, Message: "rate must be positive"}
	}
	return rate, nil
}

// lookupUnnormalized finds a caller-built key such as "eur" or " Eur".
// When several keys normalize to code, the smallest key wins.
func (r Rates) lookupUnnormalized(code Currency) (decimal.Decimal, bool) {
	var (
		best  Currency
		rate  decimal.Decimal
		found bool
	)
	for k, v := range r {
		if NormalizeCurrency(string(k)) != code {
			continue
		}
		if !found || k < best {
			best, rate, found = k, v, true
		}
	}
	return rate, found
}

// Convert moves amount from one currency to another through USD:
//
//	amountUSD = amount / rates[from]
//	result    = amountUSD * rates[to]
//
// A missing rate is a hard failure; silently using 1.0 would corrupt
// financial totals. No rounding is applied here, see RoundMoney.
func Convert(amount decimal.Decimal, from, to Currency, rates Rates) (decimal.Decimal, error) {
	fromRate, err := rates.rateFor(from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := rates.rateFor(to)
	if err != nil {
		return decimal.Zero, err
	}
	if NormalizeCurrency(string(from)) == NormalizeCurrency(string(to)) {
		return amount, nil
	}

	amountUSD := amount
	if NormalizeCurrency(string(from)) != USD {
		amountUSD = amount.DivRound(fromRate, conversionPrecision)
	}
	if NormalizeCurrency(string(to)) == USD {
		return amountUSD, nil
	}
	return amountUSD.Mul(toRate), nil
}

// conversionPrecision is the number of fractional digits kept on division.
const conversionPrecision = 16

// RoundMoney rounds for display (2 decimals). Presentation only.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
