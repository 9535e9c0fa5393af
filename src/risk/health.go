package risk

import (
	"math/big"

	"github.com/shopspring/decimal"
)

type HealthStatus string

const (
	HealthValid         HealthStatus = "valid"
	HealthNotApplicable HealthStatus = "not_applicable"
	HealthInvalid       HealthStatus = "invalid"
)

// HealthFactorCeiling guards against contract-side division-by-zero artifacts.
var HealthFactorCeiling = decimal.NewFromInt(1000)

// HealthFactor is the result of ValidateHealthFactor. Value is only meaningful
// when Status is HealthValid.
type HealthFactor struct {
	Status HealthStatus
	Value  decimal.Decimal
}

func (h HealthFactor) Valid() bool { return h.Status == HealthValid }

// ValidateHealthFactor decodes the raw health factor and decides whether it
// may be shown as a number. Zero principal debt always yields NotApplicable.
func ValidateHealthFactor(healthFactorRaw, principalDebt *big.Int) HealthFactor {
	if principalDebt == nil || principalDebt.Sign() <= 0 {
		return HealthFactor{Status: HealthNotApplicable}
	}
	if healthFactorRaw == nil {
		return HealthFactor{Status: HealthInvalid}
	}
	hf := DecodeHealthFactor(healthFactorRaw)
	if !hf.IsPositive() || hf.GreaterThanOrEqual(HealthFactorCeiling) {
		return HealthFactor{Status: HealthInvalid}
	}
	return HealthFactor{Status: HealthValid, Value: hf}
}

var (
	gaugeFull    = decimal.NewFromInt(100)
	gaugeDivisor = decimal.NewFromInt(2)
)

// HealthFactorGauge maps a health factor to a 0..100 fill, full at hf >= 2.
func HealthFactorGauge(hf decimal.Decimal) decimal.Decimal {
	if !hf.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(hf.Div(gaugeDivisor).Mul(gaugeFull), gaugeFull)
}
