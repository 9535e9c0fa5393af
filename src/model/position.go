package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Position is the raw view of a protection position as read from chain.
// Amounts keep their base units; decoding lives in the risk package.
type Position struct {
	Owner   common.Address
	Address common.Address

	Collateral      *big.Int // 6 decimals
	PrincipalDebt   *big.Int // 6 decimals
	AccruedInterest *big.Int // 6 decimals
	TotalDebt       *big.Int // 6 decimals

	HealthFactorRaw *big.Int // x10,000
	SafetyBufferRaw *big.Int // x100
	ChainRiskLevel  uint8

	Level          ProtectionLevel
	IsActive       bool
	TargetCurrency Currency
	EntryRate      *big.Int // 8 decimals
	CreatedAt      time.Time
}

// DebtConsistent reports whether totalDebt == principalDebt + accruedInterest.
func (p *Position) DebtConsistent() bool {
	if p == nil || p.TotalDebt == nil || p.PrincipalDebt == nil || p.AccruedInterest == nil {
		return false
	}
	sum := new(big.Int).Add(p.PrincipalDebt, p.AccruedInterest)
	return sum.Cmp(p.TotalDebt) == 0
}

// HasDebt reports whether principal debt is outstanding.
func (p *Position) HasDebt() bool {
	return p != nil && p.PrincipalDebt != nil && p.PrincipalDebt.Sign() > 0
}

// RiskThresholds are the protocol tier boundaries, each scaled x10,000.
type RiskThresholds struct {
	Liquidation   *big.Int
	Warning       *big.Int
	StrongWarning *big.Int
}
