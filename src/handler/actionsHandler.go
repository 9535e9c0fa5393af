package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"

	"fxhedge/src/model"
	"fxhedge/src/risk"
	"fxhedge/src/txflow"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// Writer is the subset of txflow.Service the action endpoints drive.
type Writer interface {
	ApprovalStatus(ctx context.Context, required string) (allowance *big.Int, needs bool, err error)
	Approve(ctx context.Context, amount string) (*txflow.Outcome, error)
	Activate(ctx context.Context, req txflow.ActivateRequest) (*txflow.Outcome, error)
	Reduce(ctx context.Context, amount string) (*txflow.Outcome, error)
	Close(ctx context.Context, req txflow.CloseRequest) (*txflow.Outcome, error)
	Settle(ctx context.Context) (*txflow.Outcome, error)
	ApprovePool(ctx context.Context, amount string) (*txflow.Outcome, error)
	Deposit(ctx context.Context, amount string) (*txflow.Outcome, error)
	Reset(action model.Action) error
	PendingFailure(action model.Action) error
}

// StageGuard refuses actions the position's current stage does not allow.
type StageGuard interface {
	CanBegin(action model.Action) error
}

const actionApprovePool = "approve_pool"

type actionPayload struct {
	Amount         string                `json:"amount"`
	Collateral     string                `json:"collateral"`
	Currency       model.Currency        `json:"currency"`
	Level          model.ProtectionLevel `json:"level"`
	ConfirmForfeit bool                  `json:"confirm_forfeit"`
}

var ErrUnknownAction = errors.New("unknown action")

// actionOf maps the route name to the recorded action.
func actionOf(name string) (model.Action, error) {
	switch name {
	case actionApprovePool:
		return model.ActionApprove, nil
	case string(model.ActionApprove), string(model.ActionActivate), string(model.ActionReduce),
		string(model.ActionClose), string(model.ActionSettle), string(model.ActionDeposit):
		return model.Action(name), nil
	}
	return "", ErrUnknownAction
}

// ActionHandler runs one write: POST /api/actions/{action}.
func ActionHandler(wr Writer, guard StageGuard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "action")
		action, err := actionOf(name)
		if err != nil {
			http.Error(w, "unknown action", http.StatusNotFound)
			return
		}

		var payload actionPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			logger.WithError(err).Warn("invalid action payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if err := guard.CanBegin(action); err != nil {
			writeError(w, err)
			return
		}

		ctx := r.Context()
		var out *txflow.Outcome
		switch name {
		case actionApprovePool:
			out, err = wr.ApprovePool(ctx, payload.Amount)
		case string(model.ActionApprove):
			out, err = wr.Approve(ctx, payload.Amount)
		case string(model.ActionActivate):
			out, err = wr.Activate(ctx, txflow.ActivateRequest{
				Collateral: payload.Collateral,
				Currency:   payload.Currency,
				Level:      payload.Level,
			})
		case string(model.ActionReduce):
			out, err = wr.Reduce(ctx, payload.Amount)
		case string(model.ActionClose):
			out, err = wr.Close(ctx, txflow.CloseRequest{ConfirmForfeit: payload.ConfirmForfeit})
		case string(model.ActionSettle):
			out, err = wr.Settle(ctx)
		case string(model.ActionDeposit):
			out, err = wr.Deposit(ctx, payload.Amount)
		}

		if out == nil {
			writeError(w, err)
			return
		}
		writeJSON(w, outcomeStatus(out, err), out)
	}
}

func outcomeStatus(out *txflow.Outcome, err error) int {
	switch out.Status {
	case model.TxStatusPending, model.TxStatusUnconfirmed:
		return http.StatusAccepted
	case model.TxStatusConfirmed, model.TxStatusCancelled:
		return http.StatusOK
	}
	if err != nil {
		return statusFor(err)
	}
	return http.StatusOK
}

// ResetHandler clears a failed attempt: POST /api/actions/{action}/reset.
func ResetHandler(wr Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action, err := actionOf(chi.URLParam(r, "action"))
		if err != nil {
			http.Error(w, "unknown action", http.StatusNotFound)
			return
		}
		if err := wr.Reset(action); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type approvalResponse struct {
	Allowance      decimal.Decimal `json:"allowance"`
	NeedsApproval  bool            `json:"needs_approval"`
	PendingFailure string          `json:"pending_failure,omitempty"`
}

// ApprovalStatusHandler reports whether the router allowance covers ?amount=.
func ApprovalStatusHandler(wr Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		amount := r.URL.Query().Get("amount")
		if amount == "" {
			http.Error(w, "amount is required", http.StatusBadRequest)
			return
		}
		allowance, needs, err := wr.ApprovalStatus(r.Context(), amount)
		if err != nil {
			writeError(w, err)
			return
		}
		resp := approvalResponse{Allowance: risk.DecodeStablecoin(allowance), NeedsApproval: needs}
		if pending := wr.PendingFailure(model.ActionApprove); pending != nil {
			resp.PendingFailure = pending.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
