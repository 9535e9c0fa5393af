package risk

import (
	"fxhedge/src/model"

	"github.com/shopspring/decimal"
)

var (
	fallbackDiscount = decimal.RequireFromString("0.9")

	// ResyncDivergence is the relative gap above which the oracle is pushed before activation.
	ResyncDivergence = decimal.RequireFromString("0.001")
)

// ResolveExchangeRate picks the rate used for display and estimates:
// live on-chain, then the external snapshot, then stale on-chain, then Unavailable.
// A nil or non-positive input counts as absent.
func ResolveExchangeRate(onChain *model.OracleReading, external *decimal.Decimal) model.RateQuote {
	onChainOK := onChain != nil && onChain.Rate.IsPositive()
	if onChainOK && !onChain.IsStale {
		return model.RateQuote{Rate: onChain.Rate, Source: model.RateSourceOnChain}
	}
	if external != nil && external.IsPositive() {
		return model.RateQuote{Rate: *external, Source: model.RateSourceExternal}
	}
	if onChainOK {
		return model.RateQuote{Rate: onChain.Rate, IsStale: true, Source: model.RateSourceOnChain}
	}
	return model.RateQuote{Source: model.RateSourceUnavailable}
}

// DetectFallbackPricing reports whether the contract's safe rate is the
// synthetic 90%-of-entry substitute rather than an observed rate.
func DetectFallbackPricing(entryRate, safeRate decimal.Decimal) bool {
	if !entryRate.IsPositive() {
		return false
	}
	return safeRate.LessThan(entryRate.Mul(fallbackDiscount))
}

// ExchangeRateDivergence returns |onChain - external| / external.
func ExchangeRateDivergence(onChain, external decimal.Decimal) decimal.Decimal {
	if !external.IsPositive() {
		return decimal.Zero
	}
	return onChain.Sub(external).Abs().DivRound(external, 12)
}

// NeedsOracleResync reports whether the oracle lags the external source by more than 0.1%.
func NeedsOracleResync(onChain, external decimal.Decimal) bool {
	if !onChain.IsPositive() || !external.IsPositive() {
		return false
	}
	return ExchangeRateDivergence(onChain, external).GreaterThan(ResyncDivergence)
}
