package txflow

import (
	"context"
	"fmt"
	"time"

	"fxhedge/src/model"
	"fxhedge/src/risk"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// oracleInSync compares the on-chain price for currency with the external rate.
func (s *Service) oracleInSync(ctx context.Context, currency model.Currency, external decimal.Decimal) (bool, error) {
	raw, stale, err := s.proto.OraclePrice(ctx, currency)
	if err != nil {
		return false, err
	}
	if stale {
		return false, nil
	}
	return !risk.NeedsOracleResync(risk.DecodeRate(raw), external), nil
}

// resyncOracle refreshes the oracle when it is stale or diverges from the
// external rate by more than risk.ResyncDivergence. It never blocks activation;
// failures come back as warnings.
func (s *Service) resyncOracle(ctx context.Context, currency model.Currency) []string {
	if s.rates == nil {
		return nil
	}
	rates, err := s.rates.FetchRates(ctx)
	if err != nil {
		logger.WithError(err).Warn("external rates unavailable, skipping oracle check")
		return []string{"external rate unavailable; oracle freshness was not checked"}
	}
	external, ok := rates.Rate(currency)
	if !ok {
		return []string{fmt.Sprintf("external rate for %s unavailable; oracle freshness was not checked", currency)}
	}

	inSync, err := s.oracleInSync(ctx, currency, external)
	if err != nil {
		logger.WithError(err).Warn("oracle price unavailable before activation")
		return []string{"oracle price could not be read before activation"}
	}
	if inSync {
		return nil
	}

	logger.WithField("currency", currency).Info("oracle diverges from external rate, requesting update")
	if s.trigger == nil {
		return []string{"oracle diverges from the external rate and no update endpoint is configured"}
	}

	tctx, cancel := context.WithTimeout(ctx, s.cfg.ResyncWait)
	_, err = s.trigger.Trigger(tctx)
	cancel()
	if err != nil {
		logger.WithError(err).Warn("oracle update trigger failed")
		return []string{"oracle update could not be triggered; activation uses the current on-chain price"}
	}

	for i := 0; i < s.cfg.ResyncPolls; i++ {
		select {
		case <-ctx.Done():
			return []string{"oracle update was not observed before cancellation"}
		case <-time.After(s.cfg.ResyncPollInterval):
		}
		inSync, err = s.oracleInSync(ctx, currency, external)
		if err == nil && inSync {
			return nil
		}
	}
	return []string{"oracle still differs from the external rate after the update; activation proceeds"}
}
