package connectors

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fxhedge/src/model"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// TickerAPI is the part of goex.API used for spot tickers.
type TickerAPI interface {
	GetTicker(pair goex.CurrencyPair) (*goex.Ticker, error)
}

// ExchangePair maps a currency to a ticker. When the pair is quoted in the
// currency (USDT_BRL) the last price is inverted to get USD per unit.
type ExchangePair struct {
	currency model.Currency
	pair     goex.CurrencyPair
	invert   bool
}

// ExchangeSource derives FX rates from stablecoin tickers on a crypto exchange.
type ExchangeSource struct {
	api   TickerAPI
	pairs []ExchangePair
}

func newBinanceInstance(endpoint string) *binance.Binance {
	apiConfig := &goex.APIConfig{
		HttpClient: &http.Client{Timeout: 10 * time.Second},
		Endpoint:   endpoint,
	}
	return binance.NewWithConfig(apiConfig)
}

// ParseExchangePairs parses "EUR:EUR_USDT,BRL:USDT_BRL".
func ParseExchangePairs(raw string) ([]ExchangePair, error) {
	var pairs []ExchangePair
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid pair mapping %q", item)
		}
		cur, err := model.ParseCurrency(parts[0])
		if err != nil {
			return nil, err
		}
		legs := strings.Split(strings.ToUpper(strings.TrimSpace(parts[1])), "_")
		if len(legs) != 2 {
			return nil, fmt.Errorf("invalid pair %q", parts[1])
		}
		pair := goex.NewCurrencyPair(goex.Currency{Symbol: legs[0]}, goex.Currency{Symbol: legs[1]})
		switch cur.String() {
		case legs[0]:
			pairs = append(pairs, ExchangePair{currency: cur, pair: pair})
		case legs[1]:
			pairs = append(pairs, ExchangePair{currency: cur, pair: pair, invert: true})
		default:
			return nil, fmt.Errorf("pair %q does not contain %s", parts[1], cur)
		}
	}
	return pairs, nil
}

func NewExchangeSource(api TickerAPI, pairs []ExchangePair) *ExchangeSource {
	return &ExchangeSource{api: api, pairs: pairs}
}

func NewBinanceSourceFromConfig(cfg Config) (*ExchangeSource, error) {
	pairs, err := ParseExchangePairs(cfg.BinancePairs)
	if err != nil {
		return nil, err
	}
	return NewExchangeSource(newBinanceInstance(cfg.BinanceEndpoint), pairs), nil
}

func (s *ExchangeSource) Name() string { return "exchange" }

func (s *ExchangeSource) FetchRates(ctx context.Context) (*model.ExternalRates, error) {
	out := &model.ExternalRates{
		Rates:     make(map[model.Currency]decimal.Decimal, len(s.pairs)),
		Provider:  s.Name(),
		FetchedAt: time.Now().UTC(),
	}
	for _, p := range s.pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ticker, err := s.api.GetTicker(p.pair)
		if err != nil {
			logger.WithError(err).WithField("pair", p.pair.String()).Warn("exchange ticker failed")
			continue
		}
		if ticker == nil || ticker.Last <= 0 {
			continue
		}
		last := decimal.NewFromFloat(ticker.Last)
		if p.invert {
			last = decimal.NewFromInt(1).DivRound(last, 12)
		}
		out.Rates[p.currency] = last
	}
	if len(out.Rates) == 0 {
		return nil, fmt.Errorf("exchange returned no usable tickers")
	}
	return out, nil
}
