package dashboard

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"fxhedge/src/ledger/ledgertest"
	"fxhedge/src/model"
	"fxhedge/src/risk"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() *risk.Engine {
	return risk.NewEngine(risk.Config{BorrowAPRPercent: "3.5"})
}

func fetchedFacts(t *testing.T, script func(f *ledgertest.Fake)) (*FastFacts, *SlowFacts) {
	t.Helper()
	f := ledgertest.New()
	scriptPosition(f)
	if script != nil {
		script(f)
	}
	fetcher := newFetcher(f)
	fast := fetcher.FetchFast(context.Background(), owner)
	addr := positionAt
	return fast, fetcher.FetchSlow(context.Background(), &addr)
}

func TestBuildViewReferencePosition(t *testing.T) {
	fast, slow := fetchedFacts(t, nil)

	v := BuildView(testEngine(), StageActive, fast, slow)
	require.NotNil(t, v.Position)
	p := v.Position

	assert.True(t, p.TotalDebt.Equal(decimal.NewFromInt(360)))
	assert.Equal(t, risk.HealthValid, p.HealthStatus)
	assert.Equal(t, "1.30", p.HealthDisplay)
	assert.Equal(t, risk.TierWarning, p.RiskTier)
	assert.Equal(t, "Monitor your position closely", p.Advice)
	assert.True(t, p.SafetyBuffer.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, model.RateSourceOnChain, p.Quote.Source)
	assert.True(t, p.Quote.Rate.Equal(decimal.RequireFromString("0.18")))

	// authoritative outcome from calculateProtectionOutcome
	assert.False(t, p.Outcome.Estimated)
	assert.True(t, p.Outcome.ProtectionAmount.Equal(decimal.NewFromInt(35)))
	assert.True(t, p.Outcome.DepreciationPercent.Equal(decimal.NewFromInt(10)))

	assert.False(t, p.CanClose)
	assert.Equal(t, nextStepReduce, p.NextStep)
	assert.NotEmpty(t, p.BlockedBy)
	assert.False(t, p.FallbackPricing, "0.18 is exactly the 90% boundary, not below it")
	assert.Empty(t, v.Warnings)
	require.NotNil(t, v.Thresholds)
	assert.Equal(t, []string{"oracle_EUR"}, v.Unavailable)
}

func TestBuildViewRateCards(t *testing.T) {
	_, slow := fetchedFacts(t, nil)
	v := BuildView(testEngine(), StageNoPosition, nil, slow)

	require.Len(t, v.Rates, 3)
	cards := map[model.Currency]RateCard{}
	for _, c := range v.Rates {
		cards[c.Currency] = c
	}

	brl := cards[model.CurrencyBRL]
	assert.Equal(t, model.RateSourceOnChain, brl.Quote.Source)
	assert.True(t, brl.NeedsResync, "0.18 on-chain vs 0.20 external")

	mxn := cards[model.CurrencyMXN]
	assert.Nil(t, mxn.External)
	assert.False(t, mxn.NeedsResync)

	eur := cards[model.CurrencyEUR]
	assert.Equal(t, model.RateSourceExternal, eur.Quote.Source)
	assert.True(t, eur.Quote.Rate.Equal(decimal.RequireFromString("1.1")))
}

func TestBuildViewRepaidPosition(t *testing.T) {
	fast, slow := fetchedFacts(t, func(f *ledgertest.Fake) {
		f.SetRead("getDebtDetails", big.NewInt(0), big.NewInt(0), big.NewInt(0))
		// the contract divides by zero debt and returns garbage
		f.SetRead("getHealthFactor", big.NewInt(999_999_999))
	})

	v := BuildView(testEngine(), StageActive, fast, slow)
	require.NotNil(t, v.Position)
	assert.Equal(t, risk.HealthNotApplicable, v.Position.HealthStatus)
	assert.Equal(t, HealthDisplayNA, v.Position.HealthDisplay)
	assert.Nil(t, v.Position.HealthFactor)
	assert.Empty(t, v.Position.RiskTier)
	assert.True(t, v.Position.Ratio.Infinite)
	assert.True(t, v.Position.CanClose)
	assert.True(t, v.Position.CanSettle)

	raw, err := json.Marshal(v.Position)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"collateralization_ratio":"∞"`)
	assert.NotContains(t, string(raw), "NaN")
	assert.NotContains(t, string(raw), `"health_factor"`)
}

func TestBuildViewInvalidHealthFactor(t *testing.T) {
	fast, slow := fetchedFacts(t, func(f *ledgertest.Fake) {
		f.SetRead("getHealthFactor", big.NewInt(10_000_000))
	})
	v := BuildView(testEngine(), StageActive, fast, slow)
	assert.Equal(t, risk.HealthInvalid, v.Position.HealthStatus)
	assert.Equal(t, HealthDisplayInvalid, v.Position.HealthDisplay)
	assert.Empty(t, v.Position.RiskTier)
}

func TestBuildViewWarnings(t *testing.T) {
	fast, slow := fetchedFacts(t, func(f *ledgertest.Fake) {
		f.SetRead("getSafeExchangeRate", big.NewInt(17_000_000))
		f.SetRead("validateOracle", false)
		f.SetRead("WARNING_THRESHOLD", big.NewInt(11_000))
	})
	v := BuildView(testEngine(), StageActive, fast, slow)
	require.NotNil(t, v.Position)

	assert.True(t, v.Position.FallbackPricing)
	assert.True(t, v.Position.OracleWarning)
	assert.Empty(t, v.Position.RiskTier, "non-monotonic thresholds never classify")
	assert.ElementsMatch(t, []string{warnOracle, warnFallback, warnThresholds}, v.Warnings)
}

func TestBuildViewHidesClosedPosition(t *testing.T) {
	fast, slow := fetchedFacts(t, nil)
	for _, stage := range []Stage{StageClosed, StageNoPosition} {
		v := BuildView(testEngine(), stage, fast, slow)
		assert.Nil(t, v.Position, stage)
		assert.Nil(t, v.Thresholds, stage)
		assert.Len(t, v.Rates, 3, stage)
	}
}

func TestBuildViewBeforeFirstPoll(t *testing.T) {
	v := BuildView(testEngine(), StageNoPosition, nil, nil)
	assert.Nil(t, v.Position)
	require.Len(t, v.Rates, 3)
	for _, c := range v.Rates {
		assert.Equal(t, model.RateSourceUnavailable, c.Quote.Source)
	}
}
