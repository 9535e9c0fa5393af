package ledger

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract names one of the collaborator contracts the monitor talks to.
type Contract string

const (
	ContractRouter     Contract = "router"
	ContractPosition   Contract = "position"
	ContractOracle     Contract = "oracle"
	ContractStablecoin Contract = "stablecoin"
	ContractPool       Contract = "pool"
)

const routerABIJSON = `[
 {"type":"function","name":"hasPosition","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"getPosition","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"getHealthFactor","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"calculateProtectionOutcome","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"protectionAmount","type":"uint256"},{"name":"depreciation","type":"uint256"}]},
 {"type":"function","name":"fundingPool","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"activateProtection","stateMutability":"nonpayable","inputs":[{"name":"collateralAmount","type":"uint256"},{"name":"targetCurrency","type":"string"},{"name":"level","type":"uint8"}],"outputs":[{"name":"positionAddress","type":"address"}]},
 {"type":"function","name":"reduceProtection","stateMutability":"nonpayable","inputs":[{"name":"repayAmount","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"closeProtection","stateMutability":"nonpayable","inputs":[],"outputs":[]},
 {"type":"function","name":"settleProtection","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

const positionABIJSON = `[
 {"type":"function","name":"getPositionDetails","stateMutability":"view","inputs":[],"outputs":[{"name":"_owner","type":"address"},{"name":"_collateral","type":"uint256"},{"name":"_debt","type":"uint256"},{"name":"_healthFactor","type":"uint256"},{"name":"_safetyBuffer","type":"uint256"},{"name":"_level","type":"uint8"},{"name":"_isActive","type":"bool"}]},
 {"type":"function","name":"getRiskStatus","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"getSafetyBuffer","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"getDebtDetails","stateMutability":"view","inputs":[],"outputs":[{"name":"principal","type":"uint256"},{"name":"interest","type":"uint256"},{"name":"total","type":"uint256"}]},
 {"type":"function","name":"LIQUIDATION_THRESHOLD","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"WARNING_THRESHOLD","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"STRONG_WARNING_THRESHOLD","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"validateOracle","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"getSafeExchangeRate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"targetCurrency","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"entryRate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"createdAt","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const oracleABIJSON = `[
 {"type":"function","name":"getPrice","stateMutability":"view","inputs":[{"name":"currency","type":"string"}],"outputs":[{"name":"rate","type":"uint256"},{"name":"isStale","type":"bool"}]},
 {"type":"function","name":"updatePrices","stateMutability":"nonpayable","inputs":[{"name":"currencies","type":"string[]"},{"name":"rates","type":"uint256[]"}],"outputs":[]}
]`

const erc20ABIJSON = `[
 {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const poolABIJSON = `[
 {"type":"function","name":"minLPDeposit","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"lpLockPeriod","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"lpFeeShare","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"totalLPShares","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"totalLPCapital","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"totalFunds","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"availableFunds","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"calculateCurrentLPCapital","stateMutability":"view","inputs":[],"outputs":[{"name":"currentCapital","type":"uint256"}]},
 {"type":"function","name":"getLPPosition","stateMutability":"view","inputs":[{"name":"lpAddress","type":"address"}],"outputs":[{"name":"shares","type":"uint256"},{"name":"depositTime","type":"uint256"},{"name":"currentValue","type":"uint256"},{"name":"canWithdraw","type":"bool"}]},
 {"type":"function","name":"lpDeposit","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[{"name":"shares","type":"uint256"}]}
]`

var contractABIs = map[Contract]abi.ABI{
	ContractRouter:     mustParseABI(ContractRouter, routerABIJSON),
	ContractPosition:   mustParseABI(ContractPosition, positionABIJSON),
	ContractOracle:     mustParseABI(ContractOracle, oracleABIJSON),
	ContractStablecoin: mustParseABI(ContractStablecoin, erc20ABIJSON),
	ContractPool:       mustParseABI(ContractPool, poolABIJSON),
}

func mustParseABI(name Contract, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Errorf("parse %s abi: %w", name, err))
	}
	return parsed
}

// ABIFor returns the parsed ABI of kind.
func ABIFor(kind Contract) (abi.ABI, error) {
	parsed, ok := contractABIs[kind]
	if !ok {
		return abi.ABI{}, NewError(KindConfiguration, "abi", fmt.Sprintf("unknown contract %q", kind), nil)
	}
	return parsed, nil
}
