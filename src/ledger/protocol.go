package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"fxhedge/src/model"

	"github.com/ethereum/go-ethereum/common"
)

// Addresses of the fixed protocol contracts. Position and pool addresses are
// discovered through the router.
type Addresses struct {
	Router     common.Address
	Oracle     common.Address
	Stablecoin common.Address
}

// AddressesFromConfig validates the configured hex addresses.
func AddressesFromConfig(cfg Config) (Addresses, error) {
	var a Addresses
	for _, f := range []struct {
		name string
		raw  string
		dst  *common.Address
	}{
		{"ROUTER_ADDRESS", cfg.RouterAddress, &a.Router},
		{"ORACLE_ADDRESS", cfg.OracleAddress, &a.Oracle},
		{"USDC_ADDRESS", cfg.StablecoinAddress, &a.Stablecoin},
	} {
		raw := strings.TrimSpace(f.raw)
		if raw == "" {
			continue
		}
		if !common.IsHexAddress(raw) {
			return Addresses{}, NewError(KindConfiguration, "addresses", fmt.Sprintf("%s is not a hex address", f.name), nil)
		}
		*f.dst = common.HexToAddress(raw)
	}
	return a, nil
}

// Protocol is a typed facade over a Ledger for the protection protocol.
type Protocol struct {
	ledger Ledger
	addrs  Addresses
}

func NewProtocol(l Ledger, addrs Addresses) *Protocol {
	return &Protocol{ledger: l, addrs: addrs}
}

func (p *Protocol) Ledger() Ledger         { return p.ledger }
func (p *Protocol) Addresses() Addresses   { return p.addrs }
func (p *Protocol) router() ContractRef    { return ContractRef{Kind: ContractRouter, Address: p.addrs.Router} }
func (p *Protocol) oracle() ContractRef    { return ContractRef{Kind: ContractOracle, Address: p.addrs.Oracle} }
func (p *Protocol) stablecoin() ContractRef {
	return ContractRef{Kind: ContractStablecoin, Address: p.addrs.Stablecoin}
}

func position(addr common.Address) ContractRef { return ContractRef{Kind: ContractPosition, Address: addr} }
func pool(addr common.Address) ContractRef     { return ContractRef{Kind: ContractPool, Address: addr} }

// ----- value conversion -----

func outputErr(method string, want string, got interface{}) error {
	return NewError(KindUnavailable, method, fmt.Sprintf("unexpected output %T, want %s", got, want), nil)
}

func bigAt(method string, out []interface{}, i int) (*big.Int, error) {
	if i >= len(out) {
		return nil, outputErr(method, "*big.Int", nil)
	}
	v, ok := out[i].(*big.Int)
	if !ok {
		return nil, outputErr(method, "*big.Int", out[i])
	}
	return v, nil
}

func boolAt(method string, out []interface{}, i int) (bool, error) {
	if i >= len(out) {
		return false, outputErr(method, "bool", nil)
	}
	v, ok := out[i].(bool)
	if !ok {
		return false, outputErr(method, "bool", out[i])
	}
	return v, nil
}

func addressAt(method string, out []interface{}, i int) (common.Address, error) {
	if i >= len(out) {
		return common.Address{}, outputErr(method, "common.Address", nil)
	}
	v, ok := out[i].(common.Address)
	if !ok {
		return common.Address{}, outputErr(method, "common.Address", out[i])
	}
	return v, nil
}

func stringAt(method string, out []interface{}, i int) (string, error) {
	if i >= len(out) {
		return "", outputErr(method, "string", nil)
	}
	v, ok := out[i].(string)
	if !ok {
		return "", outputErr(method, "string", out[i])
	}
	return v, nil
}

func uint8At(method string, out []interface{}, i int) (uint8, error) {
	if i >= len(out) {
		return 0, outputErr(method, "uint8", nil)
	}
	v, ok := out[i].(uint8)
	if !ok {
		return 0, outputErr(method, "uint8", out[i])
	}
	return v, nil
}

func (p *Protocol) readBig(ctx context.Context, ref ContractRef, method string, args ...interface{}) (*big.Int, error) {
	out, err := p.ledger.Read(ctx, ref, method, args...)
	if err != nil {
		return nil, err
	}
	return bigAt(method, out, 0)
}

func (p *Protocol) readBool(ctx context.Context, ref ContractRef, method string, args ...interface{}) (bool, error) {
	out, err := p.ledger.Read(ctx, ref, method, args...)
	if err != nil {
		return false, err
	}
	return boolAt(method, out, 0)
}

// ----- router reads -----

func (p *Protocol) HasPosition(ctx context.Context, user common.Address) (bool, error) {
	return p.readBool(ctx, p.router(), "hasPosition", user)
}

func (p *Protocol) PositionAddress(ctx context.Context, user common.Address) (common.Address, error) {
	out, err := p.ledger.Read(ctx, p.router(), "getPosition", user)
	if err != nil {
		return common.Address{}, err
	}
	return addressAt("getPosition", out, 0)
}

func (p *Protocol) HealthFactor(ctx context.Context, user common.Address) (*big.Int, error) {
	return p.readBig(ctx, p.router(), "getHealthFactor", user)
}

// ProtectionOutcome reads calculateProtectionOutcome: amount (6 dec) and depreciation (x100).
func (p *Protocol) ProtectionOutcome(ctx context.Context, user common.Address) (amount, depreciation *big.Int, err error) {
	out, err := p.ledger.Read(ctx, p.router(), "calculateProtectionOutcome", user)
	if err != nil {
		return nil, nil, err
	}
	if amount, err = bigAt("calculateProtectionOutcome", out, 0); err != nil {
		return nil, nil, err
	}
	if depreciation, err = bigAt("calculateProtectionOutcome", out, 1); err != nil {
		return nil, nil, err
	}
	return amount, depreciation, nil
}

func (p *Protocol) FundingPool(ctx context.Context) (common.Address, error) {
	out, err := p.ledger.Read(ctx, p.router(), "fundingPool")
	if err != nil {
		return common.Address{}, err
	}
	return addressAt("fundingPool", out, 0)
}

// ----- position reads -----

// PositionDetails reads getPositionDetails. The returned Position carries
// the reported debt as principal; DebtDetails refines it.
func (p *Protocol) PositionDetails(ctx context.Context, addr common.Address) (*model.Position, error) {
	const method = "getPositionDetails"
	out, err := p.ledger.Read(ctx, position(addr), method)
	if err != nil {
		return nil, err
	}
	pos := &model.Position{Address: addr}
	if pos.Owner, err = addressAt(method, out, 0); err != nil {
		return nil, err
	}
	if pos.Collateral, err = bigAt(method, out, 1); err != nil {
		return nil, err
	}
	if pos.PrincipalDebt, err = bigAt(method, out, 2); err != nil {
		return nil, err
	}
	if pos.HealthFactorRaw, err = bigAt(method, out, 3); err != nil {
		return nil, err
	}
	if pos.SafetyBufferRaw, err = bigAt(method, out, 4); err != nil {
		return nil, err
	}
	level, err := uint8At(method, out, 5)
	if err != nil {
		return nil, err
	}
	pos.Level = model.ProtectionLevel(level)
	if pos.IsActive, err = boolAt(method, out, 6); err != nil {
		return nil, err
	}
	pos.AccruedInterest = new(big.Int)
	pos.TotalDebt = new(big.Int).Set(pos.PrincipalDebt)
	return pos, nil
}

// DebtDetails reads (principal, interest, total).
func (p *Protocol) DebtDetails(ctx context.Context, addr common.Address) (principal, interest, total *big.Int, err error) {
	const method = "getDebtDetails"
	out, err := p.ledger.Read(ctx, position(addr), method)
	if err != nil {
		return nil, nil, nil, err
	}
	if principal, err = bigAt(method, out, 0); err != nil {
		return nil, nil, nil, err
	}
	if interest, err = bigAt(method, out, 1); err != nil {
		return nil, nil, nil, err
	}
	if total, err = bigAt(method, out, 2); err != nil {
		return nil, nil, nil, err
	}
	return principal, interest, total, nil
}

func (p *Protocol) RiskStatus(ctx context.Context, addr common.Address) (*big.Int, error) {
	return p.readBig(ctx, position(addr), "getRiskStatus")
}

func (p *Protocol) SafetyBuffer(ctx context.Context, addr common.Address) (*big.Int, error) {
	return p.readBig(ctx, position(addr), "getSafetyBuffer")
}

func (p *Protocol) Thresholds(ctx context.Context, addr common.Address) (model.RiskThresholds, error) {
	var th model.RiskThresholds
	var err error
	if th.Liquidation, err = p.readBig(ctx, position(addr), "LIQUIDATION_THRESHOLD"); err != nil {
		return th, err
	}
	if th.Warning, err = p.readBig(ctx, position(addr), "WARNING_THRESHOLD"); err != nil {
		return th, err
	}
	if th.StrongWarning, err = p.readBig(ctx, position(addr), "STRONG_WARNING_THRESHOLD"); err != nil {
		return th, err
	}
	return th, nil
}

func (p *Protocol) ValidateOracle(ctx context.Context, addr common.Address) (bool, error) {
	return p.readBool(ctx, position(addr), "validateOracle")
}

func (p *Protocol) SafeExchangeRate(ctx context.Context, addr common.Address) (*big.Int, error) {
	return p.readBig(ctx, position(addr), "getSafeExchangeRate")
}

// PositionTerms reads the immutable activation terms of a position.
func (p *Protocol) PositionTerms(ctx context.Context, addr common.Address) (model.Currency, *big.Int, time.Time, error) {
	out, err := p.ledger.Read(ctx, position(addr), "targetCurrency")
	if err != nil {
		return "", nil, time.Time{}, err
	}
	rawCurrency, err := stringAt("targetCurrency", out, 0)
	if err != nil {
		return "", nil, time.Time{}, err
	}
	currency, err := model.ParseCurrency(rawCurrency)
	if err != nil {
		return "", nil, time.Time{}, NewError(KindUnavailable, "targetCurrency", err.Error(), nil)
	}
	entry, err := p.readBig(ctx, position(addr), "entryRate")
	if err != nil {
		return "", nil, time.Time{}, err
	}
	created, err := p.readBig(ctx, position(addr), "createdAt")
	if err != nil {
		return "", nil, time.Time{}, err
	}
	return currency, entry, time.Unix(created.Int64(), 0).UTC(), nil
}

// ----- oracle and token reads -----

// OraclePrice reads getPrice(currency): an 8-decimal rate and the stale flag.
func (p *Protocol) OraclePrice(ctx context.Context, currency model.Currency) (*big.Int, bool, error) {
	out, err := p.ledger.Read(ctx, p.oracle(), "getPrice", currency.String())
	if err != nil {
		return nil, false, err
	}
	rate, err := bigAt("getPrice", out, 0)
	if err != nil {
		return nil, false, err
	}
	stale, err := boolAt("getPrice", out, 1)
	if err != nil {
		return nil, false, err
	}
	return rate, stale, nil
}

func (p *Protocol) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return p.readBig(ctx, p.stablecoin(), "allowance", owner, spender)
}

func (p *Protocol) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return p.readBig(ctx, p.stablecoin(), "balanceOf", account)
}

// ----- pool reads -----

// PoolFigure reads one of the uint256 pool views (minLPDeposit, lpLockPeriod, ...).
func (p *Protocol) PoolFigure(ctx context.Context, poolAddr common.Address, method string) (*big.Int, error) {
	return p.readBig(ctx, pool(poolAddr), method)
}

// LPPosition reads getLPPosition(lp).
func (p *Protocol) LPPosition(ctx context.Context, poolAddr, lp common.Address) (shares, depositTime, currentValue *big.Int, canWithdraw bool, err error) {
	const method = "getLPPosition"
	out, err := p.ledger.Read(ctx, pool(poolAddr), method, lp)
	if err != nil {
		return nil, nil, nil, false, err
	}
	if shares, err = bigAt(method, out, 0); err != nil {
		return nil, nil, nil, false, err
	}
	if depositTime, err = bigAt(method, out, 1); err != nil {
		return nil, nil, nil, false, err
	}
	if currentValue, err = bigAt(method, out, 2); err != nil {
		return nil, nil, nil, false, err
	}
	if canWithdraw, err = boolAt(method, out, 3); err != nil {
		return nil, nil, nil, false, err
	}
	return shares, depositTime, currentValue, canWithdraw, nil
}

// ----- writes -----

func (p *Protocol) Approve(ctx context.Context, spender common.Address, amount *big.Int) (TxHandle, error) {
	return p.ledger.Write(ctx, p.stablecoin(), "approve", spender, amount)
}

func (p *Protocol) ActivateProtection(ctx context.Context, collateral *big.Int, currency model.Currency, level model.ProtectionLevel) (TxHandle, error) {
	return p.ledger.Write(ctx, p.router(), "activateProtection", collateral, currency.String(), uint8(level))
}

func (p *Protocol) ReduceProtection(ctx context.Context, repay *big.Int) (TxHandle, error) {
	return p.ledger.Write(ctx, p.router(), "reduceProtection", repay)
}

func (p *Protocol) CloseProtection(ctx context.Context) (TxHandle, error) {
	return p.ledger.Write(ctx, p.router(), "closeProtection")
}

func (p *Protocol) SettleProtection(ctx context.Context) (TxHandle, error) {
	return p.ledger.Write(ctx, p.router(), "settleProtection")
}

func (p *Protocol) UpdatePrices(ctx context.Context, currencies []string, rates []*big.Int) (TxHandle, error) {
	if len(currencies) != len(rates) {
		return TxHandle{}, NewError(KindConfiguration, "updatePrices", "currencies and rates differ in length", nil)
	}
	return p.ledger.Write(ctx, p.oracle(), "updatePrices", currencies, rates)
}

func (p *Protocol) LPDeposit(ctx context.Context, poolAddr common.Address, amount *big.Int) (TxHandle, error) {
	return p.ledger.Write(ctx, pool(poolAddr), "lpDeposit", amount)
}

func (p *Protocol) AwaitReceipt(ctx context.Context, h TxHandle, timeout time.Duration) (*Receipt, error) {
	return p.ledger.AwaitReceipt(ctx, h, timeout)
}

func (p *Protocol) Account() (common.Address, bool) { return p.ledger.Account() }
