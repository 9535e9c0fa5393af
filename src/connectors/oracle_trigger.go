package connectors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fxhedge/src/model"

	"github.com/go-resty/resty/v2"
)

const oracleUpdatePath = "/oracle/update"

var ErrOracleTriggerUnauthorized = errors.New("oracle trigger unauthorized")

// OracleTrigger asks the publisher endpoint to push fresh prices on-chain.
// Clients never hold the oracle key themselves.
type OracleTrigger struct {
	http   *resty.Client
	apiKey string
}

func NewOracleTrigger(baseURL, apiKey string, timeout time.Duration) *OracleTrigger {
	c := newRestyClient(baseURL, timeout)
	// a push is not idempotent enough to be retried blindly
	c.SetRetryCount(0)
	return &OracleTrigger{http: c, apiKey: apiKey}
}

func NewOracleTriggerFromConfig(cfg Config) *OracleTrigger {
	return NewOracleTrigger(cfg.OracleTriggerURL, cfg.OracleAPIKey, 45*time.Second)
}

// Trigger posts to the update endpoint and returns its result.
func (t *OracleTrigger) Trigger(ctx context.Context) (*model.OracleUpdateResult, error) {
	var result model.OracleUpdateResult
	req := t.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&result)
	if t.apiKey != "" {
		req.SetAuthToken(t.apiKey)
	}

	resp, err := req.Post(oracleUpdatePath)
	if err != nil {
		return nil, fmt.Errorf("oracle trigger request: %w", err)
	}
	if resp.StatusCode() == 401 {
		return nil, ErrOracleTriggerUnauthorized
	}
	if resp.IsError() || (!result.Success && result.Status != model.TxStatusUnconfirmed) {
		msg := result.Error
		if msg == "" {
			msg = resp.Status()
		}
		return &result, fmt.Errorf("oracle trigger failed: %s", msg)
	}
	return &result, nil
}
