package risk

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ----- on-chain scales -----
//
// Every field read from chain is decoded through exactly one function below.
// Each has its own test pinning the divisor.

const (
	StablecoinDecimals   int32 = 6  // collateral, debt, balances, allowances
	RateDecimals         int32 = 8  // oracle rates, entry rate, safe rate
	HealthFactorDecimals int32 = 4  // health factor and tier thresholds (x10,000)
	PercentDecimals      int32 = 2  // safety buffer, fee share, depreciation (x100)
	LPShareDecimals      int32 = 18 // funding pool LP shares

	secondsPerDay = 86400
)

func fromBase(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

func toBase(value decimal.Decimal, decimals int32) *big.Int {
	return value.Shift(decimals).Truncate(0).BigInt()
}

// DecodeStablecoin turns a 6-decimal base-unit amount into tokens.
func DecodeStablecoin(raw *big.Int) decimal.Decimal { return fromBase(raw, StablecoinDecimals) }

// DecodeRate turns an 8-decimal rate into USD per unit.
func DecodeRate(raw *big.Int) decimal.Decimal { return fromBase(raw, RateDecimals) }

// DecodeHealthFactor divides by 10,000.
func DecodeHealthFactor(raw *big.Int) decimal.Decimal { return fromBase(raw, HealthFactorDecimals) }

// DecodeThreshold divides by 10,000, same scale as the health factor it is compared with.
func DecodeThreshold(raw *big.Int) decimal.Decimal { return fromBase(raw, HealthFactorDecimals) }

// DecodeSafetyBuffer divides by 100 and yields a percentage.
func DecodeSafetyBuffer(raw *big.Int) decimal.Decimal { return fromBase(raw, PercentDecimals) }

// DecodeFeeShare divides by 100 and yields a percentage.
func DecodeFeeShare(raw *big.Int) decimal.Decimal { return fromBase(raw, PercentDecimals) }

// DecodeDepreciation decodes calculateProtectionOutcome's depreciation (x100) into a percentage.
func DecodeDepreciation(raw *big.Int) decimal.Decimal { return fromBase(raw, PercentDecimals) }

func DecodeLPShares(raw *big.Int) decimal.Decimal { return fromBase(raw, LPShareDecimals) }

// DecodeLockPeriodDays converts a lock period in seconds to days.
func DecodeLockPeriodDays(seconds *big.Int) decimal.Decimal {
	if seconds == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(seconds, 0).Div(decimal.NewFromInt(secondsPerDay))
}

// ----- encoders for writes -----

var ErrTooPrecise = errors.New("amount has more than 6 decimal places")

// ParseStablecoin parses a user-typed token amount ("12.34") into 6-decimal base units.
func ParseStablecoin(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("parse amount %q: negative", s)
	}
	if !d.Equal(d.Truncate(StablecoinDecimals)) {
		return nil, fmt.Errorf("parse amount %q: %w", s, ErrTooPrecise)
	}
	return toBase(d, StablecoinDecimals), nil
}

// StablecoinToBase truncates tokens to 6-decimal base units.
func StablecoinToBase(tokens decimal.Decimal) *big.Int {
	return toBase(tokens, StablecoinDecimals)
}

// RateTo8Decimals rounds a USD-per-unit rate to the oracle's 8-decimal integer.
func RateTo8Decimals(rate decimal.Decimal) *big.Int {
	return rate.Shift(RateDecimals).Round(0).BigInt()
}

// EncodeHealthFactor is the inverse of DecodeHealthFactor: round(hf * 10000).
func EncodeHealthFactor(hf decimal.Decimal) *big.Int {
	return hf.Shift(HealthFactorDecimals).Round(0).BigInt()
}
