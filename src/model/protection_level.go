package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ProtectionLevel is the on-chain uint8 selecting the loan-to-value of a position.
type ProtectionLevel uint8

const (
	ProtectionLow ProtectionLevel = iota
	ProtectionMedium
	ProtectionHigh
)

var protectionLTV = map[ProtectionLevel]decimal.Decimal{
	ProtectionLow:    decimal.RequireFromString("0.20"),
	ProtectionMedium: decimal.RequireFromString("0.35"),
	ProtectionHigh:   decimal.RequireFromString("0.50"),
}

func (l ProtectionLevel) Valid() bool {
	_, ok := protectionLTV[l]
	return ok
}

// LTV returns the fixed loan-to-value fraction of the level, zero for unknown levels.
func (l ProtectionLevel) LTV() decimal.Decimal {
	if ltv, ok := protectionLTV[l]; ok {
		return ltv
	}
	return decimal.Zero
}

func (l ProtectionLevel) String() string {
	switch l {
	case ProtectionLow:
		return "low"
	case ProtectionMedium:
		return "medium"
	case ProtectionHigh:
		return "high"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// ParseProtectionLevel accepts "low|medium|high" or the numeric form "0|1|2".
func ParseProtectionLevel(raw string) (ProtectionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low", "0":
		return ProtectionLow, nil
	case "medium", "1":
		return ProtectionMedium, nil
	case "high", "2":
		return ProtectionHigh, nil
	}
	return 0, fmt.Errorf("unsupported protection level %q", raw)
}
