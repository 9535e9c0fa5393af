package dashboard

import (
	"sort"
	"time"

	"fxhedge/src/model"
	"fxhedge/src/risk"
	"fxhedge/src/txflow"

	"github.com/shopspring/decimal"
)

const (
	HealthDisplayNA      = "N/A"
	HealthDisplayInvalid = "invalid"
)

// PositionView is the evaluated position as served to clients.
type PositionView struct {
	Address  string `json:"address"`
	Currency string `json:"currency,omitempty"`
	Level    string `json:"level"`
	LTV      string `json:"ltv"`

	Collateral      decimal.Decimal `json:"collateral"`
	PrincipalDebt   decimal.Decimal `json:"principal_debt"`
	AccruedInterest decimal.Decimal `json:"accrued_interest"`
	TotalDebt       decimal.Decimal `json:"total_debt"`
	DebtConsistent  bool            `json:"debt_consistent"`
	MaxBorrow       decimal.Decimal `json:"max_borrow"`

	HealthStatus   risk.HealthStatus `json:"health_status"`
	HealthFactor   *decimal.Decimal  `json:"health_factor,omitempty"`
	HealthDisplay  string            `json:"health_display"`
	Gauge          decimal.Decimal   `json:"gauge"`
	RiskTier       risk.RiskTier     `json:"risk_tier,omitempty"`
	Advice         string            `json:"advice,omitempty"`
	ChainRiskLevel uint8             `json:"chain_risk_level"`
	SafetyBuffer   decimal.Decimal   `json:"safety_buffer_percent"`
	Ratio          risk.Ratio        `json:"collateralization_ratio"`

	EntryRate       decimal.Decimal `json:"entry_rate"`
	Quote           model.RateQuote `json:"current_rate"`
	SafeRate        decimal.Decimal `json:"safe_rate"`
	FallbackPricing bool            `json:"fallback_pricing"`
	OracleWarning   bool            `json:"oracle_warning"`

	Outcome risk.ProtectionOutcome  `json:"protection_outcome"`
	Cost    risk.InterestProjection `json:"cost"`

	CreatedAt  *time.Time       `json:"created_at,omitempty"`
	CanClose   bool             `json:"can_close"`
	CanSettle  bool             `json:"can_settle"`
	BlockedBy  string           `json:"blocked_by,omitempty"`
	NextStep   string           `json:"next_step,omitempty"`
	Evaluation *risk.Evaluation `json:"-"`
}

// RateCard is the per-currency price display.
type RateCard struct {
	Currency    model.Currency   `json:"currency"`
	Quote       model.RateQuote  `json:"quote"`
	External    *decimal.Decimal `json:"external,omitempty"`
	Divergence  decimal.Decimal  `json:"divergence"`
	NeedsResync bool             `json:"needs_resync"`
}

// View is the complete model pushed to clients after each poll.
type View struct {
	Owner      string    `json:"owner"`
	Generation uint64    `json:"generation"`
	Stage      Stage     `json:"stage"`
	UpdatedAt  time.Time `json:"updated_at"`

	Position   *PositionView    `json:"position,omitempty"`
	Thresholds *risk.Thresholds `json:"thresholds,omitempty"`
	Rates      []RateCard       `json:"rates"`

	Warnings    []string                         `json:"warnings,omitempty"`
	Unavailable []string                         `json:"unavailable,omitempty"`
	Outcomes    map[model.Action]*txflow.Outcome `json:"outcomes,omitempty"`
}

const (
	warnOracle     = "on-chain oracle price is stale or failed validation; figures may lag the market"
	warnFallback   = "health factor is computed against the 90% fallback rate, not an observed price"
	warnThresholds = "protocol risk thresholds are inconsistent; risk tier is not shown"
	warnDebt       = "total debt does not equal principal plus interest"
	warnEstimate   = "protection payout is a local estimate"
	blockedByDebt  = "principal debt must be repaid before closing or settling"
	nextStepReduce = "reduce"
)

// BuildView evaluates the latest facts. fast and slow may be nil before their
// first poll; position figures are only included when stage allows it.
func BuildView(engine *risk.Engine, stage Stage, fast *FastFacts, slow *SlowFacts) *View {
	v := &View{Stage: stage, UpdatedAt: time.Now().UTC()}

	var oracle map[model.Currency]*model.OracleReading
	var external *model.ExternalRates
	var thresholds *model.RiskThresholds
	if slow != nil {
		oracle = slow.Oracle
		external = slow.External
		thresholds = slow.Thresholds
	}
	v.Rates = rateCards(oracle, external)

	if stage.ShowsPosition() && fast != nil && fast.Position != nil {
		pos := fast.Position
		in := risk.Inputs{
			Position:      pos,
			Thresholds:    thresholds,
			SafeRateRaw:   fast.SafeRateRaw,
			OracleValid:   fast.OracleValid,
			Authoritative: fast.Outcome,
		}
		if pos.TargetCurrency != "" {
			in.Oracle = oracle[pos.TargetCurrency]
			if r, ok := external.Rate(pos.TargetCurrency); ok {
				in.External = &r
			}
		}
		ev := engine.Evaluate(in)
		v.Position = positionView(stage, pos, ev)
		v.Thresholds = ev.Thresholds
		v.Warnings = evaluationWarnings(ev)
	}

	v.Unavailable = mergeUnavailable(fast, slow)
	return v
}

func positionView(stage Stage, pos *model.Position, ev *risk.Evaluation) *PositionView {
	pv := &PositionView{
		Address:         pos.Address.Hex(),
		Currency:        pos.TargetCurrency.String(),
		Level:           pos.Level.String(),
		LTV:             pos.Level.LTV().String(),
		Collateral:      ev.Collateral,
		PrincipalDebt:   ev.PrincipalDebt,
		AccruedInterest: ev.AccruedInterest,
		TotalDebt:       ev.TotalDebt,
		DebtConsistent:  ev.DebtConsistent,
		MaxBorrow:       ev.MaxBorrow,
		HealthStatus:    ev.Health.Status,
		Gauge:           ev.Gauge,
		RiskTier:        ev.Tier,
		Advice:          ev.Tier.Advice(),
		ChainRiskLevel:  pos.ChainRiskLevel,
		SafetyBuffer:    ev.SafetyBuffer,
		Ratio:           ev.Ratio,
		EntryRate:       ev.EntryRate,
		Quote:           ev.Quote,
		SafeRate:        ev.SafeRate,
		FallbackPricing: ev.FallbackPricing,
		OracleWarning:   ev.OracleWarning,
		Outcome:         ev.Outcome,
		Cost:            ev.Cost,
		Evaluation:      ev,
	}

	switch ev.Health.Status {
	case risk.HealthValid:
		hf := ev.Health.Value
		pv.HealthFactor = &hf
		pv.HealthDisplay = hf.StringFixed(2)
	case risk.HealthNotApplicable:
		pv.HealthDisplay = HealthDisplayNA
	default:
		pv.HealthDisplay = HealthDisplayInvalid
	}

	if !pos.CreatedAt.IsZero() {
		created := pos.CreatedAt
		pv.CreatedAt = &created
	}

	if pos.HasDebt() {
		pv.BlockedBy = blockedByDebt
		pv.NextStep = nextStepReduce
	} else if stage == StageActive {
		pv.CanClose = true
		pv.CanSettle = true
	}
	return pv
}

func evaluationWarnings(ev *risk.Evaluation) []string {
	var out []string
	if ev.OracleWarning {
		out = append(out, warnOracle)
	}
	if ev.FallbackPricing {
		out = append(out, warnFallback)
	}
	if ev.ThresholdError != nil {
		out = append(out, warnThresholds)
	}
	if !ev.DebtConsistent {
		out = append(out, warnDebt)
	}
	if ev.Outcome.Estimated && ev.Outcome.ProtectionAmount.IsPositive() {
		out = append(out, warnEstimate)
	}
	return out
}

func rateCards(oracle map[model.Currency]*model.OracleReading, external *model.ExternalRates) []RateCard {
	cards := make([]RateCard, 0, len(model.SupportedCurrencies))
	for _, c := range model.SupportedCurrencies {
		card := RateCard{Currency: c}
		var ext *decimal.Decimal
		if r, ok := external.Rate(c); ok {
			ext = &r
		}
		reading := oracle[c]
		card.Quote = risk.ResolveExchangeRate(reading, ext)
		card.External = ext
		if reading != nil && ext != nil {
			card.Divergence = risk.ExchangeRateDivergence(reading.Rate, *ext)
			card.NeedsResync = risk.NeedsOracleResync(reading.Rate, *ext)
		}
		cards = append(cards, card)
	}
	return cards
}

func mergeUnavailable(fast *FastFacts, slow *SlowFacts) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(names []string) {
		for _, n := range names {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	if fast != nil {
		add(fast.Unavailable)
	}
	if slow != nil {
		add(slow.Unavailable)
	}
	sort.Strings(out)
	return out
}
