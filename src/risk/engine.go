package risk

import (
	"math/big"

	"fxhedge/src/model"

	"github.com/shopspring/decimal"
)

// Inputs are the raw facts gathered in one poll cycle. Any pointer may be nil
// when the corresponding read failed; the engine degrades instead of failing.
type Inputs struct {
	Position   *model.Position
	Thresholds *model.RiskThresholds

	Oracle   *model.OracleReading
	External *decimal.Decimal

	SafeRateRaw *big.Int
	OracleValid *bool

	// Authoritative is the decoded calculateProtectionOutcome answer, when read.
	Authoritative *ProtectionOutcome
}

// Evaluation is everything the engine derives for one position.
type Evaluation struct {
	Collateral      decimal.Decimal
	PrincipalDebt   decimal.Decimal
	AccruedInterest decimal.Decimal
	TotalDebt       decimal.Decimal
	DebtConsistent  bool

	Health       HealthFactor
	Tier         RiskTier // empty unless Health is valid and thresholds are sound
	Gauge        decimal.Decimal
	Thresholds   *Thresholds
	SafetyBuffer decimal.Decimal
	Ratio        Ratio
	MaxBorrow    decimal.Decimal

	EntryRate       decimal.Decimal
	Quote           model.RateQuote
	SafeRate        decimal.Decimal
	FallbackPricing bool
	OracleWarning   bool

	Outcome ProtectionOutcome
	Cost    InterestProjection

	ThresholdError error
}

// Engine is the PositionRiskEngine. It holds configuration only.
type Engine struct {
	borrowAPR decimal.Decimal
}

func NewEngine(cfg Config) *Engine {
	return &Engine{borrowAPR: cfg.BorrowAPR()}
}

func (e *Engine) BorrowAPR() decimal.Decimal { return e.borrowAPR }

// Evaluate derives the full risk picture from in. It returns nil when there is no position.
func (e *Engine) Evaluate(in Inputs) *Evaluation {
	p := in.Position
	if p == nil {
		return nil
	}

	ev := &Evaluation{
		Collateral:      DecodeStablecoin(p.Collateral),
		PrincipalDebt:   DecodeStablecoin(p.PrincipalDebt),
		AccruedInterest: DecodeStablecoin(p.AccruedInterest),
		TotalDebt:       DecodeStablecoin(p.TotalDebt),
		DebtConsistent:  p.DebtConsistent(),
		SafetyBuffer:    DecodeSafetyBuffer(p.SafetyBufferRaw),
		EntryRate:       DecodeRate(p.EntryRate),
	}
	if p.TotalDebt == nil {
		ev.TotalDebt = ev.PrincipalDebt.Add(ev.AccruedInterest)
	}

	ev.Health = ValidateHealthFactor(p.HealthFactorRaw, p.PrincipalDebt)
	if in.Thresholds != nil {
		th, err := ThresholdsFromRaw(*in.Thresholds)
		if err != nil {
			ev.ThresholdError = err
		} else {
			ev.Thresholds = &th
		}
	}
	if ev.Health.Valid() {
		ev.Gauge = HealthFactorGauge(ev.Health.Value)
		if ev.Thresholds != nil {
			ev.Tier = ClassifyRisk(ev.Health.Value, *ev.Thresholds)
		}
	}

	ev.Ratio = CollateralizationRatio(ev.Collateral, ev.TotalDebt)
	ev.MaxBorrow = MaxBorrow(ev.Collateral, p.Level.LTV())

	ev.Quote = ResolveExchangeRate(in.Oracle, in.External)
	if in.SafeRateRaw != nil {
		ev.SafeRate = DecodeRate(in.SafeRateRaw)
		ev.FallbackPricing = DetectFallbackPricing(ev.EntryRate, ev.SafeRate)
	}
	ev.OracleWarning = ev.FallbackPricing || ev.Quote.IsStale || (in.OracleValid != nil && !*in.OracleValid)

	if in.Authoritative != nil {
		ev.Outcome = *in.Authoritative
		ev.Outcome.Estimated = false
	} else if ev.Quote.Available() {
		ev.Outcome = EstimateProtectionOutcome(ev.Collateral, ev.PrincipalDebt, p.Level.LTV(), ev.EntryRate, ev.Quote.Rate)
	} else {
		ev.Outcome = ProtectionOutcome{Estimated: true}
	}

	ev.Cost = ProjectInterestCost(ev.PrincipalDebt, e.borrowAPR)
	return ev
}

// DecodeOutcome turns the calculateProtectionOutcome read into an authoritative outcome.
func DecodeOutcome(amountRaw, depreciationRaw *big.Int) *ProtectionOutcome {
	return &ProtectionOutcome{
		ProtectionAmount:    DecodeStablecoin(amountRaw),
		DepreciationPercent: DecodeDepreciation(depreciationRaw),
	}
}
