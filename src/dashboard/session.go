package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"fxhedge/src/ledger"
	"fxhedge/src/metrics"
	"fxhedge/src/model"
	"fxhedge/src/risk"
	"fxhedge/src/txflow"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

// ErrAccountPinned is returned when switching away from an account whose
// writes this session guards.
var ErrAccountPinned = errors.New("watched account is pinned to the signer")

type SnapshotStore interface {
	Create(ctx context.Context, snap *model.PositionSnapshot) error
}

// Session is the monitor state of one watched account. Every poll result is
// tagged with the generation it was started under; results from an older
// generation are dropped so one account's data never shows under another.
type Session struct {
	ID string

	engine    *risk.Engine
	lifecycle *Lifecycle
	snapshots SnapshotStore
	metrics   *metrics.Metrics

	mu           sync.RWMutex
	owner        common.Address
	pinned       bool
	generation   uint64
	fast         *FastFacts
	slow         *SlowFacts
	view         *View
	outcomes     map[model.Action]*txflow.Outcome
	lastSnapshot string

	// serializes view publication so subscribers never see an older view last
	refreshMu sync.Mutex

	subMu sync.Mutex
	subs  map[chan *View]struct{}
}

type SessionOption func(*Session)

func WithSnapshots(store SnapshotStore) SessionOption {
	return func(s *Session) { s.snapshots = store }
}

func WithSessionMetrics(m *metrics.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithPinnedOwner keeps the session on its initial account. Used when the
// session's lifecycle guards the signer's own writes.
func WithPinnedOwner() SessionOption {
	return func(s *Session) { s.pinned = true }
}

func NewSession(owner common.Address, engine *risk.Engine, opts ...SessionOption) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		engine:     engine,
		lifecycle:  NewLifecycle(),
		owner:      owner,
		generation: 1,
		outcomes:   map[model.Action]*txflow.Outcome{},
		subs:       map[chan *View]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.view = s.buildLocked()
	return s
}

// Owner returns the watched account and the current generation.
func (s *Session) Owner() (common.Address, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner, s.generation
}

func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// PositionAddress is the last known position contract, nil when there is none.
func (s *Session) PositionAddress() *common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fast == nil || s.fast.Position == nil || !s.lifecycle.Stage().ShowsPosition() {
		return nil
	}
	addr := s.fast.Position.Address
	return &addr
}

// SwitchOwner starts watching another account and invalidates every poll in flight.
// A pinned session only accepts its current account.
func (s *Session) SwitchOwner(owner common.Address) (uint64, error) {
	s.mu.Lock()
	if s.pinned && owner != s.owner {
		gen := s.generation
		s.mu.Unlock()
		return gen, ErrAccountPinned
	}
	s.owner = owner
	s.generation++
	s.fast = nil
	s.slow = nil
	s.outcomes = map[model.Action]*txflow.Outcome{}
	s.lastSnapshot = ""
	s.lifecycle.Reset()
	gen := s.generation
	s.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"session":    s.ID,
		"owner":      owner.Hex(),
		"generation": gen,
	}).Info("watched account switched")
	s.refresh(context.Background())
	return gen, nil
}

// ApplyFast stores a fast poll result. It returns false when gen is stale.
func (s *Session) ApplyFast(ctx context.Context, gen uint64, facts *FastFacts) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	prev := s.fast
	if !facts.Known() {
		if prev != nil {
			kept := *prev
			kept.Unavailable = facts.Unavailable
			facts = &kept
		}
	} else {
		if facts.HasPosition && facts.Position == nil && prev != nil && prev.Position != nil {
			// keep the last figures until the position read recovers
			facts.Position = prev.Position
		}
		s.lifecycle.Observe(facts.HasPosition, facts.Position)
	}
	s.fast = facts
	s.mu.Unlock()

	s.refresh(ctx)
	return true
}

// ApplySlow stores a slow poll result. It returns false when gen is stale.
func (s *Session) ApplySlow(ctx context.Context, gen uint64, facts *SlowFacts) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	if prev := s.slow; prev != nil {
		for c, r := range prev.Oracle {
			if _, ok := facts.Oracle[c]; !ok {
				if facts.Oracle == nil {
					facts.Oracle = map[model.Currency]*model.OracleReading{}
				}
				facts.Oracle[c] = r
			}
		}
		if facts.External == nil {
			facts.External = prev.External
		}
		if facts.Thresholds == nil {
			facts.Thresholds = prev.Thresholds
		}
	}
	s.slow = facts
	s.mu.Unlock()

	s.refresh(ctx)
	return true
}

func (s *Session) View() *View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Session) Stage() Stage { return s.lifecycle.Stage() }

// CanBegin checks action against the lifecycle using the last principal read.
func (s *Session) CanBegin(action model.Action) error {
	s.mu.RLock()
	var principal *big.Int
	if s.fast != nil && s.fast.Position != nil {
		principal = s.fast.Position.PrincipalDebt
	}
	s.mu.RUnlock()
	return s.lifecycle.CanBegin(action, principal)
}

// Submitted implements txflow.Observer.
func (s *Session) Submitted(owner common.Address, action model.Action, handle ledger.TxHandle) {
	if !s.watching(owner) {
		return
	}
	if err := s.lifecycle.Begin(action); err != nil {
		logger.WithError(err).WithField("action", action).Warn("lifecycle did not follow submitted transaction")
	}
	s.mu.Lock()
	s.outcomes[action] = &txflow.Outcome{Action: action, Status: model.TxStatusPending, TxHash: handle.Hash.Hex()}
	s.mu.Unlock()
	s.refresh(context.Background())
}

// Finished implements txflow.Observer.
func (s *Session) Finished(owner common.Address, action model.Action, outcome *txflow.Outcome) {
	if !s.watching(owner) {
		return
	}
	stage := s.lifecycle.Finish(action, outcome.Status)
	s.mu.Lock()
	s.outcomes[action] = outcome
	s.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"action": action,
		"status": outcome.Status,
		"stage":  stage,
	}).Info("position action finished")
	s.refresh(context.Background())
}

func (s *Session) watching(owner common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner == owner
}

// Subscribe returns a channel receiving every new view. The channel keeps only
// the latest view when the reader falls behind.
func (s *Session) Subscribe() (<-chan *View, func()) {
	ch := make(chan *View, 1)
	if v := s.View(); v != nil {
		ch <- v
	}
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) publish(v *View) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

func (s *Session) refresh(ctx context.Context) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.Lock()
	v := s.buildLocked()
	s.view = v
	owner := s.owner.Hex()
	snap, key := snapshotOf(owner, v)
	persist := snap != nil && key != s.lastSnapshot
	if persist {
		s.lastSnapshot = key
	}
	s.mu.Unlock()

	s.observeMetrics(owner, v)
	if persist && s.snapshots != nil {
		if err := s.snapshots.Create(ctx, snap); err != nil {
			logger.WithError(err).WithField("owner", owner).Warn("failed to store position snapshot")
		}
	}
	s.publish(v)
}

func (s *Session) buildLocked() *View {
	v := BuildView(s.engine, s.lifecycle.Stage(), s.fast, s.slow)
	v.Owner = s.owner.Hex()
	v.Generation = s.generation
	if len(s.outcomes) > 0 {
		v.Outcomes = make(map[model.Action]*txflow.Outcome, len(s.outcomes))
		for a, o := range s.outcomes {
			v.Outcomes[a] = o
		}
	}
	return v
}

func (s *Session) observeMetrics(owner string, v *View) {
	for _, card := range v.Rates {
		if card.Quote.Available() {
			s.metrics.ObserveRate(card.Currency.String(), string(card.Quote.Source), card.Quote.Rate.InexactFloat64())
		}
	}
	if v.Position == nil {
		return
	}
	var hf *float64
	if v.Position.HealthFactor != nil {
		f := v.Position.HealthFactor.InexactFloat64()
		hf = &f
	}
	severity := -1
	if v.Position.RiskTier != "" {
		severity = v.Position.RiskTier.Severity()
	}
	s.metrics.ObservePosition(owner, hf, v.Position.SafetyBuffer.InexactFloat64(), severity)
}

// snapshotOf returns the audit row for v and the key deciding whether it
// differs from the previous one. Views without a position produce none.
func snapshotOf(owner string, v *View) (*model.PositionSnapshot, string) {
	p := v.Position
	if p == nil {
		return nil, ""
	}
	snap := &model.PositionSnapshot{
		Owner:           owner,
		PositionAddress: p.Address,
		Currency:        p.Currency,
		Level:           p.Level,
		Collateral:      p.Collateral,
		TotalDebt:       p.TotalDebt,
		HealthStatus:    string(p.HealthStatus),
		HealthFactor:    p.HealthFactor,
		RiskTier:        string(p.RiskTier),
		SafetyBuffer:    p.SafetyBuffer,
		Rate:            p.Quote.Rate,
		RateSource:      string(p.Quote.Source),
		FallbackPricing: p.FallbackPricing,
		CapturedAt:      time.Now().UTC(),
	}
	hf := HealthDisplayNA
	if p.HealthFactor != nil {
		hf = p.HealthFactor.StringFixed(4)
	}
	key := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%t|%s",
		v.Stage, p.Address, p.HealthStatus, hf, p.RiskTier,
		p.TotalDebt.String(), p.Quote.Source, p.FallbackPricing, p.Collateral.String())
	return snap, key
}
