package monitor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fxhedge/src/database"
	"fxhedge/src/executors"
	"fxhedge/src/server"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Monitor polls one account and, when Serve is set, exposes the HTTP API.
type Monitor struct {
	Serve bool
}

func (t *Monitor) Start() error {
	config := executors.GetConfig()
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	// Initialize the audit database (no-op unless ENABLE_DB)
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return err
	}

	s, err := build(config, GetConfig().ReadOnly)
	if err != nil {
		logrus.WithError(err).Error("Failed to wire monitor")
		return err
	}

	owner, _ := s.session.Owner()
	logrus.WithFields(map[string]interface{}{
		"owner":   owner.Hex(),
		"fast":    config.FastInterval,
		"slow":    config.SlowInterval,
		"serving": t.Serve,
	}).Info("Starting position monitor")

	scheduler := executors.NewScheduler(config.TaskTimeout, s.metrics)
	scheduler.Add(s.monitor.Tasks(config)...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.StartLoop(gctx)
	})
	if t.Serve {
		srvCfg := server.GetConfig()
		g.Go(func() error {
			return server.StartServer(gctx, srvCfg.Port, server.NewRouter(s.deps), srvCfg.ShutdownTimeout)
		})
	} else {
		g.Go(func() error {
			logViews(gctx, s)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("Monitor stopped with error")
		return err
	}
	return nil
}

// logViews prints each view change when no HTTP API is attached.
func logViews(ctx context.Context, s *stack) {
	views, cancel := s.session.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-views:
			fields := map[string]interface{}{
				"stage":       v.Stage,
				"generation":  v.Generation,
				"unavailable": v.Unavailable,
			}
			if p := v.Position; p != nil {
				fields["health"] = p.HealthDisplay
				fields["tier"] = p.RiskTier
				fields["buffer"] = p.SafetyBuffer.StringFixed(2)
				fields["rate"] = p.Quote.Rate.String()
				fields["rate_source"] = p.Quote.Source
			}
			entry := logrus.WithFields(fields)
			if len(v.Warnings) > 0 {
				entry.WithField("warnings", v.Warnings).Warn("position update")
				continue
			}
			entry.Info("position update")
		}
	}
}
