package txflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"fxhedge/src/ledger"
	"fxhedge/src/model"
	"fxhedge/src/pool"
	"fxhedge/src/risk"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrPositionExists     = errors.New("an active protection position already exists")
	ErrNoPosition         = errors.New("no active protection position")
	ErrNeedsApproval      = errors.New("stablecoin allowance is below the required amount; approve first")
	ErrInsufficientFunds  = errors.New("stablecoin balance is below the required amount")
	ErrExceedsDebt        = errors.New("repay amount exceeds the outstanding debt")
	ErrCloseWithDebt      = errors.New("outstanding debt must be repaid before closing; reduce the position first")
	ErrSettleWithDebt     = errors.New("outstanding debt must be repaid before settling; reduce the position first")
	ErrPayoutNotConfirmed = errors.New("protection payout is positive; settle to claim it or confirm the close")
)

// PrecisionTolerance is how far a typed repay amount may be from the debt and
// still be treated as the full debt.
var PrecisionTolerance = decimal.New(1, -risk.StablecoinDecimals)

// NeedsApproval reports whether allowance does not cover required.
func NeedsApproval(allowance, required *big.Int) bool {
	if required == nil || required.Sign() <= 0 {
		return false
	}
	return allowance == nil || allowance.Cmp(required) < 0
}

func parsePositive(amount string) (*big.Int, error) {
	raw, err := risk.ParseStablecoin(amount)
	if err != nil {
		if errors.Is(err, risk.ErrTooPrecise) {
			return nil, ledger.NewError(ledger.KindPrecision, "parse", err.Error(), err)
		}
		return nil, err
	}
	if raw.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return raw, nil
}

// ApprovalStatus reports the router allowance and whether it covers required.
func (s *Service) ApprovalStatus(ctx context.Context, required string) (allowance *big.Int, needs bool, err error) {
	owner, err := s.account()
	if err != nil {
		return nil, false, err
	}
	req, err := parsePositive(required)
	if err != nil {
		return nil, false, err
	}
	allowance, err = s.proto.Allowance(ctx, owner, s.proto.Addresses().Router)
	if err != nil {
		return nil, false, err
	}
	return allowance, NeedsApproval(allowance, req), nil
}

// Approve lets the router pull amount stablecoins. An empty amount approves
// the configured default.
func (s *Service) Approve(ctx context.Context, amount string) (*Outcome, error) {
	return s.approve(ctx, amount, s.proto.Addresses().Router, model.ActionApprove)
}

func (s *Service) approve(ctx context.Context, amount string, spender common.Address, action model.Action) (*Outcome, error) {
	if strings.TrimSpace(amount) == "" {
		amount = s.cfg.DefaultApprovalAmount
	}
	raw, err := parsePositive(amount)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, action, func(ctx context.Context, owner common.Address) (*Outcome, error) {
		return s.submit(ctx, owner, action, nil, func(ctx context.Context) (ledger.TxHandle, error) {
			return s.proto.Approve(ctx, spender, raw)
		})
	})
}

type ActivateRequest struct {
	Collateral string                `json:"collateral"`
	Currency   model.Currency        `json:"currency"`
	Level      model.ProtectionLevel `json:"level"`
}

// Activate opens a protection position after checking funds and, when the
// oracle has drifted from the external rate, asking for an oracle refresh.
func (s *Service) Activate(ctx context.Context, req ActivateRequest) (*Outcome, error) {
	if !req.Currency.Valid() {
		return nil, fmt.Errorf("unsupported currency %q", req.Currency)
	}
	if !req.Level.Valid() {
		return nil, fmt.Errorf("unsupported protection level %d", req.Level)
	}
	collateral, err := parsePositive(req.Collateral)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, model.ActionActivate, func(ctx context.Context, owner common.Address) (*Outcome, error) {
		has, err := s.proto.HasPosition(ctx, owner)
		if err != nil {
			return nil, err
		}
		if has {
			return nil, ErrPositionExists
		}
		if err := s.checkFunds(ctx, owner, collateral); err != nil {
			return nil, err
		}

		warnings := s.resyncOracle(ctx, req.Currency)

		return s.submit(ctx, owner, model.ActionActivate, warnings, func(ctx context.Context) (ledger.TxHandle, error) {
			return s.proto.ActivateProtection(ctx, collateral, req.Currency, req.Level)
		})
	})
}

func (s *Service) checkFunds(ctx context.Context, owner common.Address, required *big.Int) error {
	balance, err := s.proto.BalanceOf(ctx, owner)
	if err != nil {
		return err
	}
	if balance.Cmp(required) < 0 {
		return ErrInsufficientFunds
	}
	allowance, err := s.proto.Allowance(ctx, owner, s.proto.Addresses().Router)
	if err != nil {
		return err
	}
	if NeedsApproval(allowance, required) {
		return ErrNeedsApproval
	}
	return nil
}

func (s *Service) positionOf(ctx context.Context, owner common.Address) (common.Address, error) {
	has, err := s.proto.HasPosition(ctx, owner)
	if err != nil {
		return common.Address{}, err
	}
	if !has {
		return common.Address{}, ErrNoPosition
	}
	return s.proto.PositionAddress(ctx, owner)
}

// ResolveRepayAmount turns a typed repay amount into base units. Amounts within
// PrecisionTolerance of the debt are clamped to the exact debt.
func ResolveRepayAmount(amount string, totalDebt *big.Int) (*big.Int, error) {
	typed, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if !typed.IsPositive() {
		return nil, ErrInvalidAmount
	}
	debt := risk.DecodeStablecoin(totalDebt)
	diff := typed.Sub(debt)
	if diff.Abs().LessThanOrEqual(PrecisionTolerance) {
		return new(big.Int).Set(totalDebt), nil
	}
	if diff.IsPositive() {
		return nil, fmt.Errorf("%w: debt is %s", ErrExceedsDebt, debt.String())
	}
	return parsePositive(amount)
}

// Reduce repays part or all of the debt.
func (s *Service) Reduce(ctx context.Context, amount string) (*Outcome, error) {
	return s.run(ctx, model.ActionReduce, func(ctx context.Context, owner common.Address) (*Outcome, error) {
		posAddr, err := s.positionOf(ctx, owner)
		if err != nil {
			return nil, err
		}
		_, _, total, err := s.proto.DebtDetails(ctx, posAddr)
		if err != nil {
			return nil, err
		}
		if total.Sign() == 0 {
			return nil, fmt.Errorf("%w: nothing to repay", ErrInvalidAmount)
		}
		repay, err := ResolveRepayAmount(amount, total)
		if err != nil {
			return nil, err
		}
		if err := s.checkFunds(ctx, owner, repay); err != nil {
			return nil, err
		}
		return s.submit(ctx, owner, model.ActionReduce, nil, func(ctx context.Context) (ledger.TxHandle, error) {
			return s.proto.ReduceProtection(ctx, repay)
		})
	})
}

type CloseRequest struct {
	// ConfirmForfeit acknowledges that a positive protection payout will not be claimed.
	ConfirmForfeit bool `json:"confirm_forfeit"`
}

// Close ends a debt-free position. When the protocol reports a positive payout
// the close is refused unless the caller confirms; settling claims the payout.
func (s *Service) Close(ctx context.Context, req CloseRequest) (*Outcome, error) {
	return s.run(ctx, model.ActionClose, func(ctx context.Context, owner common.Address) (*Outcome, error) {
		posAddr, err := s.positionOf(ctx, owner)
		if err != nil {
			return nil, err
		}
		principal, _, _, err := s.proto.DebtDetails(ctx, posAddr)
		if err != nil {
			return nil, err
		}
		if principal.Sign() > 0 {
			return nil, ErrCloseWithDebt
		}

		var warnings []string
		amountRaw, depRaw, err := s.proto.ProtectionOutcome(ctx, owner)
		if err != nil {
			warnings = append(warnings, "protection payout could not be read before closing")
			logger.WithError(err).Warn("calculateProtectionOutcome failed before close")
		} else if outcome := risk.DecodeOutcome(amountRaw, depRaw); outcome.ProtectionAmount.IsPositive() {
			if !req.ConfirmForfeit {
				return nil, fmt.Errorf("%w (payout %s)", ErrPayoutNotConfirmed, outcome.ProtectionAmount.String())
			}
			warnings = append(warnings, fmt.Sprintf("closing forfeits a protection payout of %s", outcome.ProtectionAmount.String()))
		}

		return s.submit(ctx, owner, model.ActionClose, warnings, func(ctx context.Context) (ledger.TxHandle, error) {
			return s.proto.CloseProtection(ctx)
		})
	})
}

// Settle claims the protection payout of a debt-free position.
func (s *Service) Settle(ctx context.Context) (*Outcome, error) {
	return s.run(ctx, model.ActionSettle, func(ctx context.Context, owner common.Address) (*Outcome, error) {
		posAddr, err := s.positionOf(ctx, owner)
		if err != nil {
			return nil, err
		}
		principal, _, _, err := s.proto.DebtDetails(ctx, posAddr)
		if err != nil {
			return nil, err
		}
		if principal.Sign() > 0 {
			return nil, ErrSettleWithDebt
		}
		return s.submit(ctx, owner, model.ActionSettle, nil, func(ctx context.Context) (ledger.TxHandle, error) {
			return s.proto.SettleProtection(ctx)
		})
	})
}

// ApprovePool lets the funding pool pull amount stablecoins for an LP deposit.
func (s *Service) ApprovePool(ctx context.Context, amount string) (*Outcome, error) {
	poolAddr, err := s.proto.FundingPool(ctx)
	if err != nil {
		return nil, err
	}
	return s.approve(ctx, amount, poolAddr, model.ActionApprove)
}

// Deposit adds liquidity to the funding pool.
func (s *Service) Deposit(ctx context.Context, amount string) (*Outcome, error) {
	return s.run(ctx, model.ActionDeposit, func(ctx context.Context, owner common.Address) (*Outcome, error) {
		view, err := pool.Load(ctx, s.proto, &owner)
		if err != nil {
			return nil, err
		}
		raw, err := pool.ValidateDeposit(amount, view)
		if err != nil {
			if errors.Is(err, pool.ErrNeedsApproval) {
				return nil, ErrNeedsApproval
			}
			return nil, err
		}
		return s.submit(ctx, owner, model.ActionDeposit, nil, func(ctx context.Context) (ledger.TxHandle, error) {
			return s.proto.LPDeposit(ctx, view.Address, raw)
		})
	})
}
