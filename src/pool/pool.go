package pool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"fxhedge/src/ledger"
	"fxhedge/src/risk"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNonPositive    = errors.New("deposit amount must be greater than zero")
	ErrBelowMinimum   = errors.New("deposit amount is below the pool minimum")
	ErrInsufficient   = errors.New("deposit amount exceeds the wallet balance")
	ErrNeedsApproval  = errors.New("stablecoin allowance is below the deposit amount")
	ErrNoAccount      = errors.New("no signing account configured")
	ErrNoPoolDeployed = errors.New("funding pool address is not set on the router")
)

// LPPosition is the caller's share of the pool.
type LPPosition struct {
	Shares       decimal.Decimal `json:"shares"`
	CurrentValue decimal.Decimal `json:"current_value"`
	DepositedAt  *time.Time      `json:"deposited_at,omitempty"`
	UnlockAt     *time.Time      `json:"unlock_at,omitempty"`
	CanWithdraw  bool            `json:"can_withdraw"`
}

// View is the decoded funding pool state.
type View struct {
	Address common.Address `json:"address"`

	MinDeposit       decimal.Decimal `json:"min_deposit"`
	LockPeriodDays   decimal.Decimal `json:"lock_period_days"`
	FeeSharePercent  decimal.Decimal `json:"fee_share_percent"`
	TotalShares      decimal.Decimal `json:"total_shares"`
	TotalLPCapital   decimal.Decimal `json:"total_lp_capital"`
	CurrentLPCapital decimal.Decimal `json:"current_lp_capital"`
	TotalFunds       decimal.Decimal `json:"total_funds"`
	AvailableFunds   decimal.Decimal `json:"available_funds"`

	Position  *LPPosition      `json:"position,omitempty"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
	Allowance *decimal.Decimal `json:"allowance,omitempty"`

	// raw base units kept for validation
	minRaw       *big.Int
	balanceRaw   *big.Int
	allowanceRaw *big.Int
}

// Load reads every pool view concurrently. Account figures are only read when
// account is non-nil.
func Load(ctx context.Context, proto *ledger.Protocol, account *common.Address) (*View, error) {
	poolAddr, err := proto.FundingPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("read funding pool: %w", err)
	}
	if poolAddr == (common.Address{}) {
		return nil, ErrNoPoolDeployed
	}

	figures := []string{
		"minLPDeposit", "lpLockPeriod", "lpFeeShare", "totalLPShares",
		"totalLPCapital", "calculateCurrentLPCapital", "totalFunds", "availableFunds",
	}
	raw := make([]*big.Int, len(figures))

	var (
		shares, depositTime, currentValue *big.Int
		canWithdraw                       bool
		balance, allowance                *big.Int
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, method := range figures {
		i, method := i, method
		g.Go(func() error {
			v, err := proto.PoolFigure(gctx, poolAddr, method)
			if err != nil {
				return fmt.Errorf("read %s: %w", method, err)
			}
			raw[i] = v
			return nil
		})
	}
	if account != nil {
		acct := *account
		g.Go(func() error {
			var err error
			shares, depositTime, currentValue, canWithdraw, err = proto.LPPosition(gctx, poolAddr, acct)
			return err
		})
		g.Go(func() error {
			var err error
			balance, err = proto.BalanceOf(gctx, acct)
			return err
		})
		g.Go(func() error {
			var err error
			allowance, err = proto.Allowance(gctx, acct, poolAddr)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	v := &View{
		Address:          poolAddr,
		MinDeposit:       risk.DecodeStablecoin(raw[0]),
		LockPeriodDays:   risk.DecodeLockPeriodDays(raw[1]),
		FeeSharePercent:  risk.DecodeFeeShare(raw[2]),
		TotalShares:      risk.DecodeLPShares(raw[3]),
		TotalLPCapital:   risk.DecodeStablecoin(raw[4]),
		CurrentLPCapital: risk.DecodeStablecoin(raw[5]),
		TotalFunds:       risk.DecodeStablecoin(raw[6]),
		AvailableFunds:   risk.DecodeStablecoin(raw[7]),
		minRaw:           raw[0],
	}

	if account != nil {
		pos := &LPPosition{
			Shares:       risk.DecodeLPShares(shares),
			CurrentValue: risk.DecodeStablecoin(currentValue),
			CanWithdraw:  canWithdraw,
		}
		if depositTime != nil && depositTime.Sign() > 0 {
			deposited := time.Unix(depositTime.Int64(), 0).UTC()
			unlock := deposited.Add(time.Duration(raw[1].Int64()) * time.Second)
			pos.DepositedAt = &deposited
			pos.UnlockAt = &unlock
		}
		v.Position = pos

		bal := risk.DecodeStablecoin(balance)
		alw := risk.DecodeStablecoin(allowance)
		v.Balance, v.Allowance = &bal, &alw
		v.balanceRaw, v.allowanceRaw = balance, allowance
	}
	return v, nil
}

// ValidateDeposit parses amount and checks it against the pool minimum and the
// account's balance and allowance. ErrNeedsApproval is returned last so a
// caller can offer an approval first.
func ValidateDeposit(amount string, v *View) (*big.Int, error) {
	raw, err := risk.ParseStablecoin(amount)
	if err != nil {
		return nil, err
	}
	if raw.Sign() <= 0 {
		return nil, ErrNonPositive
	}
	if v.minRaw != nil && raw.Cmp(v.minRaw) < 0 {
		return nil, fmt.Errorf("%w: minimum is %s", ErrBelowMinimum, v.MinDeposit.String())
	}
	if v.balanceRaw != nil && raw.Cmp(v.balanceRaw) > 0 {
		return nil, ErrInsufficient
	}
	if v.allowanceRaw != nil && raw.Cmp(v.allowanceRaw) > 0 {
		return raw, ErrNeedsApproval
	}
	return raw, nil
}
