package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type RateSource string

const (
	RateSourceOnChain     RateSource = "on_chain"
	RateSourceExternal    RateSource = "external"
	RateSourceFallback    RateSource = "fallback"
	RateSourceUnavailable RateSource = "unavailable"
)

// RateQuote is a resolved USD-per-unit exchange rate plus its provenance.
type RateQuote struct {
	Rate    decimal.Decimal `json:"rate"`
	IsStale bool            `json:"is_stale"`
	Source  RateSource      `json:"source"`
}

func (q RateQuote) Available() bool {
	return q.Source != RateSourceUnavailable && q.Rate.IsPositive()
}

// OracleReading is one getPrice(currency) answer from the on-chain oracle.
type OracleReading struct {
	Rate    decimal.Decimal
	IsStale bool
}

// ExternalRates is one snapshot of the external FX API, USD per unit.
type ExternalRates struct {
	Rates     map[Currency]decimal.Decimal `json:"rates"`
	Provider  string                       `json:"provider"`
	FetchedAt time.Time                    `json:"fetched_at"`
}

// Rate returns the snapshot rate for c; ok is false when missing or non-positive.
func (e *ExternalRates) Rate(c Currency) (decimal.Decimal, bool) {
	if e == nil || e.Rates == nil {
		return decimal.Zero, false
	}
	r, ok := e.Rates[c]
	if !ok || !r.IsPositive() {
		return decimal.Zero, false
	}
	return r, true
}
