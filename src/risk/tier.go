package risk

import (
	"errors"
	"fmt"

	"fxhedge/src/model"

	"github.com/shopspring/decimal"
)

type RiskTier string

const (
	TierLiquidation   RiskTier = "liquidation"
	TierStrongWarning RiskTier = "strong_warning"
	TierWarning       RiskTier = "warning"
	TierSafe          RiskTier = "safe"
)

var tierAdvice = map[RiskTier]string{
	TierLiquidation:   "Immediate action required",
	TierStrongWarning: "Consider reducing position",
	TierWarning:       "Monitor your position closely",
	TierSafe:          "Your position is healthy",
}

// Advice is the short guidance shown next to a tier.
func (t RiskTier) Advice() string { return tierAdvice[t] }

// Severity orders tiers worst (0) to best (3).
func (t RiskTier) Severity() int {
	switch t {
	case TierLiquidation:
		return 0
	case TierStrongWarning:
		return 1
	case TierWarning:
		return 2
	default:
		return 3
	}
}

var ErrNonMonotonicThresholds = errors.New("risk thresholds are not strictly increasing")

// Thresholds are the decoded tier boundaries L < W < S.
type Thresholds struct {
	Liquidation   decimal.Decimal `json:"liquidation"`
	Warning       decimal.Decimal `json:"warning"`
	StrongWarning decimal.Decimal `json:"strong_warning"`
}

func (t Thresholds) Validate() error {
	if !t.Liquidation.IsPositive() {
		return fmt.Errorf("liquidation threshold %s: %w", t.Liquidation, ErrNonMonotonicThresholds)
	}
	if !t.Liquidation.LessThan(t.Warning) || !t.Warning.LessThan(t.StrongWarning) {
		return fmt.Errorf("L=%s W=%s S=%s: %w", t.Liquidation, t.Warning, t.StrongWarning, ErrNonMonotonicThresholds)
	}
	return nil
}

// ThresholdsFromRaw decodes the on-chain constants and validates their order.
func ThresholdsFromRaw(raw model.RiskThresholds) (Thresholds, error) {
	t := Thresholds{
		Liquidation:   DecodeThreshold(raw.Liquidation),
		Warning:       DecodeThreshold(raw.Warning),
		StrongWarning: DecodeThreshold(raw.StrongWarning),
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}

// ClassifyRisk partitions [0, inf) at L, W, S with inclusive lower bounds.
// Callers only pass health factors validated as HealthValid.
func ClassifyRisk(hf decimal.Decimal, t Thresholds) RiskTier {
	switch {
	case hf.LessThan(t.Liquidation):
		return TierLiquidation
	case hf.LessThan(t.Warning):
		return TierStrongWarning
	case hf.LessThan(t.StrongWarning):
		return TierWarning
	default:
		return TierSafe
	}
}
