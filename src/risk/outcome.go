package risk

import (
	"github.com/shopspring/decimal"
)

var (
	hundred    = decimal.NewFromInt(100)
	monthsYear = decimal.NewFromInt(12)
	daysYear   = decimal.NewFromInt(365)

	// SwapFeePercent is the one-time fee charged on the borrowed principal.
	SwapFeePercent = decimal.RequireFromString("0.1")
)

// ProtectionOutcome is a payout figure. Estimated is true when it was computed
// locally instead of read from calculateProtectionOutcome.
type ProtectionOutcome struct {
	ProtectionAmount    decimal.Decimal `json:"protection_amount"`
	DepreciationPercent decimal.Decimal `json:"depreciation_percent"`
	Estimated           bool            `json:"estimated"`
}

// EstimateProtectionOutcome reproduces the settlement formula offline.
// Only depreciation of the target currency pays out; the amount is
// principal * depreciation% capped at collateral * ltv.
func EstimateProtectionOutcome(collateral, principalDebt, ltv, entryRate, currentRate decimal.Decimal) ProtectionOutcome {
	out := ProtectionOutcome{
		ProtectionAmount:    decimal.Zero,
		DepreciationPercent: decimal.Zero,
		Estimated:           true,
	}
	if !entryRate.IsPositive() || !currentRate.IsPositive() {
		return out
	}
	if currentRate.GreaterThanOrEqual(entryRate) {
		return out
	}

	out.DepreciationPercent = entryRate.Sub(currentRate).DivRound(entryRate, 16).Mul(hundred)
	amount := principalDebt.Mul(out.DepreciationPercent).Div(hundred)
	if limit := MaxBorrow(collateral, ltv); amount.GreaterThan(limit) {
		amount = limit
	}
	out.ProtectionAmount = amount
	return out
}

// InterestProjection is an approximate, non-compounding cost estimate.
type InterestProjection struct {
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent"`
	Daily             decimal.Decimal `json:"daily"`
	Monthly           decimal.Decimal `json:"monthly"`
	Yearly            decimal.Decimal `json:"yearly"`
	SwapFee           decimal.Decimal `json:"swap_fee"`
	Approximate       bool            `json:"approximate"`
}

// ProjectInterestCost: yearly = debt*apr/100, monthly = yearly/12, daily = yearly/365.
func ProjectInterestCost(principalDebt, annualRatePercent decimal.Decimal) InterestProjection {
	yearly := principalDebt.Mul(annualRatePercent).Div(hundred)
	return InterestProjection{
		AnnualRatePercent: annualRatePercent,
		Yearly:            yearly,
		Monthly:           yearly.Div(monthsYear),
		Daily:             yearly.Div(daysYear),
		SwapFee:           SwapFee(principalDebt),
		Approximate:       true,
	}
}

// SwapFee is principal * 0.1%.
func SwapFee(principalDebt decimal.Decimal) decimal.Decimal {
	return principalDebt.Mul(SwapFeePercent).Div(hundred)
}
