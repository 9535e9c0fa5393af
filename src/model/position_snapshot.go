package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionSnapshot is an audit row written whenever the evaluated view of a
// position changes. It is never read back as authoritative state.
type PositionSnapshot struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Owner           string `gorm:"size:42;index" json:"owner"`
	PositionAddress string `gorm:"size:42;index" json:"position_address"`
	Currency        string `gorm:"size:8" json:"currency"`
	Level           string `gorm:"size:16" json:"level"`

	Collateral decimal.Decimal `gorm:"type:numeric(38,6)" json:"collateral"`
	TotalDebt  decimal.Decimal `gorm:"type:numeric(38,6)" json:"total_debt"`

	HealthStatus string           `gorm:"size:20" json:"health_status"`
	HealthFactor *decimal.Decimal `gorm:"type:numeric(20,4)" json:"health_factor,omitempty"`
	RiskTier     string           `gorm:"size:20;index" json:"risk_tier"`
	SafetyBuffer decimal.Decimal  `gorm:"type:numeric(20,2)" json:"safety_buffer"`

	Rate            decimal.Decimal `gorm:"type:numeric(30,8)" json:"rate"`
	RateSource      string          `gorm:"size:20" json:"rate_source"`
	FallbackPricing bool            `json:"fallback_pricing"`

	CapturedAt time.Time `gorm:"index" json:"captured_at"`
}
