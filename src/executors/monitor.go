package executors

import (
	"context"
	"fmt"
	"strings"

	"fxhedge/src/dashboard"
	"fxhedge/src/metrics"

	logger "github.com/sirupsen/logrus"
)

const (
	TaskPosition = "position"
	TaskMarket   = "market"
)

// Monitor feeds a dashboard session from the ledger on two cadences:
// position facts (fast) and prices/thresholds (slow).
type Monitor struct {
	session *dashboard.Session
	fetcher *dashboard.Fetcher
	metrics *metrics.Metrics
}

func NewMonitor(session *dashboard.Session, fetcher *dashboard.Fetcher, m *metrics.Metrics) *Monitor {
	return &Monitor{session: session, fetcher: fetcher, metrics: m}
}

// Tasks returns the two poll tasks for cfg's cadences.
func (m *Monitor) Tasks(cfg Config) []Task {
	return []Task{
		{Name: TaskPosition, Interval: cfg.FastInterval, Run: m.PollPosition},
		{Name: TaskMarket, Interval: cfg.SlowInterval, Run: m.PollMarket},
	}
}

// PollPosition reads position existence, debt, health factor and risk status.
func (m *Monitor) PollPosition(ctx context.Context) error {
	owner, gen := m.session.Owner()
	facts := m.fetcher.FetchFast(ctx, owner)
	if !m.session.ApplyFast(ctx, gen, facts) {
		m.discarded(TaskPosition, gen)
		return nil
	}
	return unavailable(facts.Unavailable)
}

// PollMarket reads oracle prices, the external snapshot and thresholds.
func (m *Monitor) PollMarket(ctx context.Context) error {
	_, gen := m.session.Owner()
	facts := m.fetcher.FetchSlow(ctx, m.session.PositionAddress())
	if !m.session.ApplySlow(ctx, gen, facts) {
		m.discarded(TaskMarket, gen)
		return nil
	}
	return unavailable(facts.Unavailable)
}

func (m *Monitor) discarded(task string, gen uint64) {
	m.metrics.ObserveDiscard(task)
	logger.WithFields(map[string]interface{}{
		"task":       task,
		"generation": gen,
	}).Debug("discarded poll result from a previous account")
}

func unavailable(names []string) error {
	if len(names) == 0 {
		return nil
	}
	return fmt.Errorf("data unavailable: %s", strings.Join(names, ", "))
}
