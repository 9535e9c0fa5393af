package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fxhedge/src/model"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// fxAPIResponse is the USD-based latest-rates payload: units of each currency per 1 USD.
type fxAPIResponse struct {
	Result             string                     `json:"result"`
	ErrorType          string                     `json:"error-type,omitempty"`
	BaseCode           string                     `json:"base_code"`
	TimeLastUpdateUnix int64                      `json:"time_last_update_unix"`
	Rates              map[string]decimal.Decimal `json:"rates"`
}

// FXClient reads the external FX API.
type FXClient struct {
	http *resty.Client
	path string
}

func NewFXClient(baseURL, path string, timeout time.Duration) *FXClient {
	return &FXClient{http: newRestyClient(baseURL, timeout), path: path}
}

func NewFXClientFromConfig(cfg Config) *FXClient {
	return NewFXClient(cfg.FXBaseURL, cfg.FXPath, cfg.FXTimeout)
}

func (c *FXClient) Name() string { return "fx_api" }

// FetchRates returns USD per unit for BRL, MXN and EUR.
func (c *FXClient) FetchRates(ctx context.Context) (*model.ExternalRates, error) {
	var body fxAPIResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get(c.path)
	if err != nil {
		return nil, fmt.Errorf("fx api request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fx api status %d", resp.StatusCode())
	}
	if body.Result != "" && body.Result != "success" {
		return nil, fmt.Errorf("fx api result %q: %s", body.Result, body.ErrorType)
	}
	if base := strings.ToUpper(body.BaseCode); base != "" && base != "USD" {
		return nil, fmt.Errorf("fx api base %q, want USD", body.BaseCode)
	}

	out := &model.ExternalRates{
		Rates:     make(map[model.Currency]decimal.Decimal, len(model.SupportedCurrencies)),
		Provider:  c.Name(),
		FetchedAt: time.Now().UTC(),
	}
	for _, cur := range model.SupportedCurrencies {
		perUSD, ok := body.Rates[cur.String()]
		if !ok || !perUSD.IsPositive() {
			logger.WithField("currency", cur).Warn("fx api returned no rate")
			continue
		}
		out.Rates[cur] = decimal.NewFromInt(1).DivRound(perUSD, 12)
	}
	if len(out.Rates) == 0 {
		return nil, fmt.Errorf("fx api returned no usable rates")
	}
	return out, nil
}
