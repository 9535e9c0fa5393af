package risk

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// InfinitySymbol is how an unbounded ratio is displayed.
const InfinitySymbol = "∞"

// Ratio is a collateralization ratio which is Infinite when there is no debt.
type Ratio struct {
	Infinite bool
	Value    decimal.Decimal
}

func (r Ratio) String() string {
	if r.Infinite {
		return InfinitySymbol
	}
	return r.Value.StringFixed(2)
}

// MarshalJSON renders "∞" or the ratio as a string; never NaN.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.Infinite {
		return json.Marshal(InfinitySymbol)
	}
	return json.Marshal(r.Value.String())
}

// CollateralizationRatio returns collateral/debt, or Infinite when debt is zero.
func CollateralizationRatio(collateral, debt decimal.Decimal) Ratio {
	if !debt.IsPositive() {
		return Ratio{Infinite: true}
	}
	return Ratio{Value: collateral.DivRound(debt, 18)}
}

// MaxBorrow is collateral * LTV(level).
func MaxBorrow(collateral, ltv decimal.Decimal) decimal.Decimal {
	return collateral.Mul(ltv)
}
