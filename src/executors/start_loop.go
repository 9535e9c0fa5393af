package executors

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"fxhedge/src/metrics"

	logger "github.com/sirupsen/logrus"
)

var ErrNoTasks = errors.New("no tasks scheduled")

// Task is one periodic poll.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type scheduled struct {
	Task
	running atomic.Bool
}

// Scheduler runs tasks on independent tickers. A task never overlaps itself:
// a tick that arrives while the previous run is in flight is skipped.
type Scheduler struct {
	tasks   []*scheduled
	timeout time.Duration
	metrics *metrics.Metrics

	runs sync.WaitGroup
}

func NewScheduler(timeout time.Duration, m *metrics.Metrics) *Scheduler {
	return &Scheduler{timeout: timeout, metrics: m}
}

func (s *Scheduler) Add(tasks ...Task) {
	for _, t := range tasks {
		s.tasks = append(s.tasks, &scheduled{Task: t})
	}
}

// StartLoop blocks until ctx is cancelled and every in-flight run has returned.
func (s *Scheduler) StartLoop(ctx context.Context) error {
	if len(s.tasks) == 0 {
		return ErrNoTasks
	}

	var loops sync.WaitGroup
	for _, t := range s.tasks {
		loops.Add(1)
		go func(t *scheduled) {
			defer loops.Done()
			s.loop(ctx, t)
		}(t)
	}
	loops.Wait()
	s.runs.Wait()
	logger.Println("loop stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, t *scheduled) {
	ticker := time.NewTicker(t.Interval) // Set up a ticker that fires periodically
	defer ticker.Stop()

	logger.WithFields(map[string]interface{}{
		"task":     t.Name,
		"interval": t.Interval,
	}).Info("task scheduled")

	s.tick(ctx, t)
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			s.tick(ctx, t)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, t *scheduled) {
	if !t.running.CompareAndSwap(false, true) {
		s.metrics.ObserveSkip(t.Name)
		logger.WithField("task", t.Name).Debug("previous run still in flight, skipping tick")
		return
	}
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer t.running.Store(false)

		runCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		err := t.Run(runCtx)
		s.metrics.ObservePoll(t.Name, err)
		if err != nil && ctx.Err() == nil {
			logger.WithError(err).WithField("task", t.Name).Warn("poll failed")
		}
	}()
}
