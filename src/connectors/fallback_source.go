package connectors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fxhedge/src/model"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// FallbackSource queries sources in order and fills currencies missing from
// earlier answers with later ones.
type FallbackSource struct {
	sources []RateSource
}

func NewFallbackSource(sources ...RateSource) *FallbackSource {
	return &FallbackSource{sources: sources}
}

// NewRateSourceFromConfig builds the FX API source, followed by the exchange
// fallback when enabled.
func NewRateSourceFromConfig(cfg Config) (RateSource, error) {
	sources := []RateSource{NewFXClientFromConfig(cfg)}
	if cfg.EnableExchangeFallback {
		ex, err := NewBinanceSourceFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		sources = append(sources, ex)
	}
	return NewFallbackSource(sources...), nil
}

func (f *FallbackSource) Name() string {
	names := make([]string, 0, len(f.sources))
	for _, s := range f.sources {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

func (f *FallbackSource) FetchRates(ctx context.Context) (*model.ExternalRates, error) {
	var merged *model.ExternalRates
	var errs []error
	var providers []string

	for _, s := range f.sources {
		got, err := s.FetchRates(ctx)
		if err != nil {
			logger.WithError(err).WithField("source", s.Name()).Warn("rate source failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if merged == nil {
			merged = &model.ExternalRates{Rates: map[model.Currency]decimal.Decimal{}, FetchedAt: got.FetchedAt}
		}
		added := false
		for cur, rate := range got.Rates {
			if _, ok := merged.Rates[cur]; !ok {
				merged.Rates[cur] = rate
				added = true
			}
		}
		if added {
			providers = append(providers, got.Provider)
		}
		if len(merged.Rates) == len(model.SupportedCurrencies) {
			break
		}
	}

	if merged == nil || len(merged.Rates) == 0 {
		return nil, fmt.Errorf("all rate sources failed: %w", errors.Join(errs...))
	}
	merged.Provider = strings.Join(providers, "+")
	return merged, nil
}
