package dashboard

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"fxhedge/src/connectors"
	"fxhedge/src/ledger"
	"fxhedge/src/model"
	"fxhedge/src/risk"

	"github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// FastFacts are the position reads refreshed every few seconds.
type FastFacts struct {
	HasPosition bool
	Position    *model.Position
	Outcome     *risk.ProtectionOutcome
	SafeRateRaw *big.Int
	OracleValid *bool

	// Unavailable names the reads that failed in this cycle.
	Unavailable []string
	FetchedAt   time.Time
}

// Known reports whether the position existence read succeeded.
func (f *FastFacts) Known() bool {
	return f != nil && !f.failed("has_position")
}

func (f *FastFacts) failed(name string) bool {
	for _, u := range f.Unavailable {
		if u == name {
			return true
		}
	}
	return false
}

// SlowFacts are the oracle, threshold and external rate reads.
type SlowFacts struct {
	Thresholds *model.RiskThresholds
	Oracle     map[model.Currency]*model.OracleReading
	External   *model.ExternalRates

	Unavailable []string
	FetchedAt   time.Time
}

// failures collects read errors by name; reads never abort each other.
type failures struct {
	mu    sync.Mutex
	names []string
}

func (f *failures) add(name string, err error) {
	logger.WithError(err).WithField("read", name).Debug("read unavailable")
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()
}

func (f *failures) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	sort.Strings(f.names)
	return f.names
}

// Fetcher reads everything the view needs from the ledger and the rate source.
type Fetcher struct {
	proto *ledger.Protocol
	rates connectors.RateSource
}

func NewFetcher(proto *ledger.Protocol, rates connectors.RateSource) *Fetcher {
	return &Fetcher{proto: proto, rates: rates}
}

// FetchFast reads position existence and every per-position figure.
func (f *Fetcher) FetchFast(ctx context.Context, owner common.Address) *FastFacts {
	out := &FastFacts{FetchedAt: time.Now().UTC()}
	var fails failures

	has, err := f.proto.HasPosition(ctx, owner)
	if err != nil {
		fails.add("has_position", err)
		out.Unavailable = fails.list()
		return out
	}
	out.HasPosition = has
	if !has {
		return out
	}

	addr, err := f.proto.PositionAddress(ctx, owner)
	if err != nil {
		fails.add("position_address", err)
		out.Unavailable = fails.list()
		return out
	}

	var (
		pos                      *model.Position
		principal, interest, tot *big.Int
		hf, buffer, chainRisk    *big.Int
		currency                 model.Currency
		entry                    *big.Int
		created                  time.Time
		termsOK                  bool
	)

	var g errgroup.Group
	read := func(name string, fn func(ctx context.Context) error) {
		g.Go(func() error {
			if err := fn(ctx); err != nil {
				fails.add(name, err)
			}
			return nil
		})
	}

	read("position", func(ctx context.Context) (err error) {
		pos, err = f.proto.PositionDetails(ctx, addr)
		return err
	})
	read("debt", func(ctx context.Context) (err error) {
		principal, interest, tot, err = f.proto.DebtDetails(ctx, addr)
		return err
	})
	read("health_factor", func(ctx context.Context) (err error) {
		hf, err = f.proto.HealthFactor(ctx, owner)
		return err
	})
	read("safety_buffer", func(ctx context.Context) (err error) {
		buffer, err = f.proto.SafetyBuffer(ctx, addr)
		return err
	})
	read("risk_status", func(ctx context.Context) (err error) {
		chainRisk, err = f.proto.RiskStatus(ctx, addr)
		return err
	})
	read("terms", func(ctx context.Context) (err error) {
		currency, entry, created, err = f.proto.PositionTerms(ctx, addr)
		termsOK = err == nil
		return err
	})
	read("oracle_valid", func(ctx context.Context) error {
		ok, err := f.proto.ValidateOracle(ctx, addr)
		if err == nil {
			out.OracleValid = &ok
		}
		return err
	})
	read("safe_rate", func(ctx context.Context) (err error) {
		out.SafeRateRaw, err = f.proto.SafeExchangeRate(ctx, addr)
		return err
	})
	read("protection_outcome", func(ctx context.Context) error {
		amount, dep, err := f.proto.ProtectionOutcome(ctx, owner)
		if err == nil {
			out.Outcome = risk.DecodeOutcome(amount, dep)
		}
		return err
	})
	_ = g.Wait()

	if pos != nil {
		if principal != nil {
			pos.PrincipalDebt = principal
			pos.AccruedInterest = interest
			pos.TotalDebt = tot
		}
		if hf != nil {
			pos.HealthFactorRaw = hf
		}
		if buffer != nil {
			pos.SafetyBufferRaw = buffer
		}
		if chainRisk != nil && chainRisk.IsUint64() && chainRisk.Uint64() <= 255 {
			pos.ChainRiskLevel = uint8(chainRisk.Uint64())
		}
		if termsOK {
			pos.TargetCurrency = currency
			pos.EntryRate = entry
			pos.CreatedAt = created
		}
		out.Position = pos
	}
	out.Unavailable = fails.list()
	return out
}

// FetchSlow reads oracle prices for every currency, the external snapshot and,
// when a position exists, its thresholds.
func (f *Fetcher) FetchSlow(ctx context.Context, positionAddr *common.Address) *SlowFacts {
	out := &SlowFacts{
		Oracle:    make(map[model.Currency]*model.OracleReading, len(model.SupportedCurrencies)),
		FetchedAt: time.Now().UTC(),
	}
	var fails failures
	var mu sync.Mutex

	var g errgroup.Group
	for _, c := range model.SupportedCurrencies {
		c := c
		g.Go(func() error {
			raw, stale, err := f.proto.OraclePrice(ctx, c)
			if err != nil {
				fails.add("oracle_"+c.String(), err)
				return nil
			}
			mu.Lock()
			out.Oracle[c] = &model.OracleReading{Rate: risk.DecodeRate(raw), IsStale: stale}
			mu.Unlock()
			return nil
		})
	}
	if f.rates != nil {
		g.Go(func() error {
			ext, err := f.rates.FetchRates(ctx)
			if err != nil {
				fails.add("external_rates", err)
				return nil
			}
			out.External = ext
			return nil
		})
	}
	if positionAddr != nil {
		g.Go(func() error {
			th, err := f.proto.Thresholds(ctx, *positionAddr)
			if err != nil {
				fails.add("thresholds", err)
				return nil
			}
			out.Thresholds = &th
			return nil
		})
	}
	_ = g.Wait()

	out.Unavailable = fails.list()
	return out
}
