package publisher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"fxhedge/src/connectors"
	"fxhedge/src/ledger"
	"fxhedge/src/metrics"
	"fxhedge/src/model"
	"fxhedge/src/repository"
	"fxhedge/src/risk"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrMissingRate = errors.New("external source did not return every supported currency")
	ErrPushBusy    = errors.New("an oracle update is already in progress")
)

const UnconfirmedMessage = "submitted, unconfirmed"

// TxLogStore is the part of the transaction log repository used here.
type TxLogStore interface {
	Create(ctx context.Context, entry *model.TransactionLog) error
	UpdateStatus(ctx context.Context, correlationID string, upd repository.TxUpdate) error
}

// PricePublisher fetches external rates and pushes them to the on-chain oracle.
type PricePublisher struct {
	source   connectors.RateSource
	protocol *ledger.Protocol
	cfg      Config
	txLogs   TxLogStore
	metrics  *metrics.Metrics

	busy sync.Mutex
}

func New(source connectors.RateSource, protocol *ledger.Protocol, cfg Config, txLogs TxLogStore, m *metrics.Metrics) *PricePublisher {
	return &PricePublisher{source: source, protocol: protocol, cfg: cfg, txLogs: txLogs, metrics: m}
}

// EncodeRates orders rates as BRL, MXN, EUR and scales them to 8 decimals.
func EncodeRates(rates *model.ExternalRates) ([]string, []*big.Int, error) {
	currencies := make([]string, 0, len(model.SupportedCurrencies))
	encoded := make([]*big.Int, 0, len(model.SupportedCurrencies))
	for _, cur := range model.SupportedCurrencies {
		r, ok := rates.Rate(cur)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingRate, cur)
		}
		scaled := risk.RateTo8Decimals(r)
		if scaled.Sign() <= 0 {
			return nil, nil, fmt.Errorf("rate for %s rounds to zero at 8 decimals", cur)
		}
		currencies = append(currencies, cur.String())
		encoded = append(encoded, scaled)
	}
	return currencies, encoded, nil
}

// Publish runs one push. Concurrent calls fail fast with ErrPushBusy.
func (p *PricePublisher) Publish(ctx context.Context, updatedBy string) (*model.OracleUpdateResult, error) {
	if !p.busy.TryLock() {
		return nil, ErrPushBusy
	}
	defer p.busy.Unlock()

	result, err := p.publish(ctx, updatedBy)
	p.metrics.ObserveOracleUpdate(err)
	return result, err
}

// Trigger runs an in-process push on behalf of the oracle resync.
func (p *PricePublisher) Trigger(ctx context.Context) (*model.OracleUpdateResult, error) {
	return p.Publish(ctx, "resync")
}

func (p *PricePublisher) publish(ctx context.Context, updatedBy string) (*model.OracleUpdateResult, error) {
	result := &model.OracleUpdateResult{Timestamp: time.Now().UTC(), UpdatedBy: updatedBy}

	if _, ok := p.protocol.Account(); !ok {
		err := ledger.NewError(ledger.KindConfiguration, "updatePrices", "oracle key not configured", nil)
		result.Error = err.Error()
		return result, err
	}

	rates, err := p.source.FetchRates(ctx)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("fetch rates: %w", err)
	}
	currencies, encoded, err := EncodeRates(rates)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	result.Rates = make(map[model.Currency]decimal.Decimal, len(currencies))
	for _, cur := range model.SupportedCurrencies {
		r, _ := rates.Rate(cur)
		result.Rates[cur] = r
	}

	correlationID := uuid.NewString()
	owner, _ := p.protocol.Account()
	if err := p.txLogs.Create(ctx, &model.TransactionLog{
		CorrelationID: correlationID,
		Owner:         owner.Hex(),
		Action:        model.ActionOracle,
	}); err != nil {
		logger.WithError(err).Warn("failed to record oracle update attempt")
	}

	logger.WithFields(map[string]interface{}{
		"provider":   rates.Provider,
		"currencies": currencies,
		"updated_by": updatedBy,
	}).Info("pushing oracle prices")

	handle, err := p.protocol.UpdatePrices(ctx, currencies, encoded)
	if err != nil {
		err = ledger.Classify("updatePrices", err)
		p.finish(ctx, correlationID, "", err)
		result.Error = err.Error()
		return result, err
	}
	result.TransactionHash = handle.Hash.Hex()
	result.ExplorerURL = p.cfg.ExplorerTxURL + result.TransactionHash

	receipt, err := p.protocol.AwaitReceipt(ctx, handle, p.cfg.ReceiptTimeout)
	if err != nil {
		p.finish(ctx, correlationID, result.TransactionHash, err)
		result.Status = txStatus(err)
		if result.Status == model.TxStatusUnconfirmed {
			result.Message = UnconfirmedMessage
			logger.WithField("tx_hash", result.TransactionHash).Warn("oracle update submitted, receipt not seen in time")
			return result, nil
		}
		result.Error = err.Error()
		return result, err
	}

	result.BlockNumber = receipt.BlockNumber
	result.Success = true
	result.Status = model.TxStatusConfirmed
	p.finish(ctx, correlationID, result.TransactionHash, nil)

	logger.WithFields(map[string]interface{}{
		"tx_hash": result.TransactionHash,
		"block":   result.BlockNumber,
	}).Info("oracle prices updated")
	return result, nil
}

func (p *PricePublisher) finish(ctx context.Context, correlationID, hash string, err error) {
	upd := repository.TxUpdate{Status: txStatus(err), TxHash: hash}
	if err != nil {
		upd.ErrorKind = string(ledger.KindOf(err))
		upd.Message = err.Error()
	}
	if uErr := p.txLogs.UpdateStatus(ctx, correlationID, upd); uErr != nil {
		logger.WithError(uErr).Warn("failed to update oracle update log")
	}
}

// txStatus maps a push error to the status recorded for it.
func txStatus(err error) model.TxStatus {
	if err == nil {
		return model.TxStatusConfirmed
	}
	switch ledger.KindOf(err) {
	case ledger.KindTimeout:
		return model.TxStatusUnconfirmed
	case ledger.KindContractRejected, ledger.KindStaleOracle:
		return model.TxStatusRejected
	case ledger.KindUserCancelled:
		return model.TxStatusCancelled
	}
	return model.TxStatusFailed
}

// Run pushes prices every interval until ctx is cancelled.
func (p *PricePublisher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = p.cfg.PushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	push := func() {
		if _, err := p.Publish(ctx, "scheduler"); err != nil {
			logger.WithError(err).Error("oracle push failed")
		}
	}
	push()

	for {
		select {
		case <-ctx.Done():
			logger.Info("oracle publisher stopped")
			return nil
		case <-ticker.C:
			push()
		}
	}
}
