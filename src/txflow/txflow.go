package txflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fxhedge/src/connectors"
	"fxhedge/src/ledger"
	"fxhedge/src/metrics"
	"fxhedge/src/model"
	"fxhedge/src/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrInFlight      = errors.New("a call for this action is already in flight")
	ErrResetRequired = errors.New("the previous attempt failed; reset before retrying")
)

// UnconfirmedMessage is reported when no receipt arrives within the timeout.
const UnconfirmedMessage = "submitted, unconfirmed"

type TxLogStore interface {
	Create(ctx context.Context, entry *model.TransactionLog) error
	UpdateStatus(ctx context.Context, correlationID string, upd repository.TxUpdate) error
}

type ExceptionStore interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// Trigger asks the publisher to refresh the on-chain oracle.
type Trigger interface {
	Trigger(ctx context.Context) (*model.OracleUpdateResult, error)
}

// Observer is told when a write is submitted and when its attempt ends.
type Observer interface {
	Submitted(owner common.Address, action model.Action, handle ledger.TxHandle)
	Finished(owner common.Address, action model.Action, outcome *Outcome)
}

// Outcome is the result of one write attempt.
type Outcome struct {
	ID          string         `json:"id"`
	Action      model.Action   `json:"action"`
	Status      model.TxStatus `json:"status"`
	TxHash      string         `json:"tx_hash,omitempty"`
	BlockNumber uint64         `json:"block_number,omitempty"`
	ExplorerURL string         `json:"explorer_url,omitempty"`
	Message     string         `json:"message,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// Service runs the protocol's write operations.
type Service struct {
	proto      *ledger.Protocol
	rates      connectors.RateSource
	trigger    Trigger
	txLogs     TxLogStore
	exceptions ExceptionStore
	metrics    *metrics.Metrics
	cfg        Config

	guard    *InFlight
	resets   *ResetTracker
	observer Observer
}

type Option func(*Service)

func WithObserver(o Observer) Option { return func(s *Service) { s.observer = o } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func NewService(proto *ledger.Protocol, rates connectors.RateSource, trigger Trigger, txLogs TxLogStore, exceptions ExceptionStore, cfg Config, opts ...Option) *Service {
	s := &Service{
		proto:      proto,
		rates:      rates,
		trigger:    trigger,
		txLogs:     txLogs,
		exceptions: exceptions,
		cfg:        cfg,
		guard:      NewInFlight(),
		resets:     NewResetTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) account() (common.Address, error) {
	addr, ok := s.proto.Account()
	if !ok {
		return common.Address{}, ledger.NewError(ledger.KindConfiguration, "write", "no signer configured; the monitor is read-only", nil)
	}
	return addr, nil
}

// Reset clears a failed attempt so the action can be retried.
func (s *Service) Reset(action model.Action) error {
	owner, err := s.account()
	if err != nil {
		return err
	}
	s.resets.Reset(owner, action)
	return nil
}

// PendingFailure returns the failure waiting for a reset, if any.
func (s *Service) PendingFailure(action model.Action) error {
	owner, ok := s.proto.Account()
	if !ok {
		return nil
	}
	return s.resets.Pending(owner, action)
}

// run enforces the signer, reset and in-flight rules around fn.
func (s *Service) run(ctx context.Context, action model.Action, fn func(ctx context.Context, owner common.Address) (*Outcome, error)) (*Outcome, error) {
	owner, err := s.account()
	if err != nil {
		s.recordException(ctx, action, "account", err)
		return nil, err
	}
	if prev := s.resets.Pending(owner, action); prev != nil {
		return nil, fmt.Errorf("%w: %v", ErrResetRequired, prev)
	}
	release, ok := s.guard.TryAcquire(owner, action)
	if !ok {
		return nil, ErrInFlight
	}
	defer release()
	return fn(ctx, owner)
}

// submit sends the write, records it and awaits the receipt within the configured bound.
func (s *Service) submit(ctx context.Context, owner common.Address, action model.Action, warnings []string, send func(ctx context.Context) (ledger.TxHandle, error)) (*Outcome, error) {
	out := &Outcome{ID: uuid.NewString(), Action: action, Status: model.TxStatusPending, Warnings: warnings}
	started := time.Now()

	if err := s.txLogs.Create(ctx, &model.TransactionLog{
		CorrelationID: out.ID,
		Owner:         owner.Hex(),
		Action:        action,
	}); err != nil {
		logger.WithError(err).Warn("failed to record transaction attempt")
	}

	handle, err := send(ctx)
	if err != nil {
		return s.fail(ctx, owner, out, ledger.Classify(string(action), err), started)
	}
	out.TxHash = handle.Hash.Hex()
	out.ExplorerURL = s.cfg.ExplorerTxURL + out.TxHash
	if s.observer != nil {
		s.observer.Submitted(owner, action, handle)
	}

	logger.WithFields(map[string]interface{}{
		"action":         action,
		"tx_hash":        out.TxHash,
		"correlation_id": out.ID,
	}).Info("transaction submitted")

	receipt, err := s.proto.AwaitReceipt(ctx, handle, s.cfg.ReceiptTimeout)
	switch {
	case err == nil && receipt.Succeeded():
		out.Status = model.TxStatusConfirmed
		out.BlockNumber = receipt.BlockNumber
	case ledger.KindOf(err) == ledger.KindTimeout:
		out.Status = model.TxStatusUnconfirmed
		out.Message = UnconfirmedMessage
	default:
		if err == nil {
			err = ledger.NewError(ledger.KindContractRejected, string(action), "transaction reverted", nil)
		}
		if receipt != nil {
			out.BlockNumber = receipt.BlockNumber
		}
		return s.fail(ctx, owner, out, ledger.Classify(string(action), err), started)
	}

	s.finish(ctx, owner, out, started)
	return out, nil
}

func (s *Service) fail(ctx context.Context, owner common.Address, out *Outcome, err error, started time.Time) (*Outcome, error) {
	kind := ledger.KindOf(err)
	out.ErrorKind = string(kind)
	out.Message = err.Error()

	if kind == ledger.KindUserCancelled {
		out.Status = model.TxStatusCancelled
		out.Message = "request cancelled in wallet"
		s.finish(ctx, owner, out, started)
		return out, nil
	}

	out.Status = model.TxStatusFailed
	if kind == ledger.KindContractRejected || kind == ledger.KindStaleOracle {
		out.Status = model.TxStatusRejected
	}
	s.resets.Fail(owner, out.Action, err)
	if kind == ledger.KindConfiguration || kind == ledger.KindUnavailable {
		s.recordException(ctx, out.Action, "submit", err)
	}
	s.finish(ctx, owner, out, started)
	return out, err
}

func (s *Service) finish(ctx context.Context, owner common.Address, out *Outcome, started time.Time) {
	if err := s.txLogs.UpdateStatus(ctx, out.ID, repository.TxUpdate{
		Status:    out.Status,
		TxHash:    out.TxHash,
		ErrorKind: out.ErrorKind,
		Message:   out.Message,
	}); err != nil {
		logger.WithError(err).Warn("failed to update transaction log")
	}
	s.metrics.ObserveWrite(string(out.Action), string(out.Status), time.Since(started).Seconds())
	if s.observer != nil {
		s.observer.Finished(owner, out.Action, out)
	}

	logger.WithFields(map[string]interface{}{
		"action":         out.Action,
		"status":         out.Status,
		"tx_hash":        out.TxHash,
		"correlation_id": out.ID,
	}).Info("transaction finished")
}

func (s *Service) recordException(ctx context.Context, action model.Action, method string, err error) {
	exc := model.NewException("txflow", method, string(ledger.KindOf(err)), model.LevelError, err, map[string]interface{}{"action": action})
	if cErr := s.exceptions.Create(ctx, exc); cErr != nil {
		logger.WithError(cErr).Warn("failed to persist exception")
	}
}
