package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"fxhedge/src/dashboard"
	"fxhedge/src/ledger"
	"fxhedge/src/pool"
	"fxhedge/src/publisher"
	"fxhedge/src/txflow"

	logger "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var le *ledger.Error
	if errors.As(err, &le) {
		resp.Kind = string(le.Kind)
	}
	writeJSON(w, statusFor(err), resp)
}

var conflicts = []error{
	dashboard.ErrInvalidTransition,
	dashboard.ErrDebtOutstanding,
	dashboard.ErrAccountPinned,
	txflow.ErrInFlight,
	txflow.ErrResetRequired,
	txflow.ErrPositionExists,
	txflow.ErrNoPosition,
	txflow.ErrCloseWithDebt,
	txflow.ErrSettleWithDebt,
	txflow.ErrPayoutNotConfirmed,
	publisher.ErrPushBusy,
}

// statusFor maps domain errors to HTTP statuses. Anything unrecognised is a
// validation failure of the request.
func statusFor(err error) int {
	for _, c := range conflicts {
		if errors.Is(err, c) {
			return http.StatusConflict
		}
	}
	if errors.Is(err, pool.ErrNoAccount) || errors.Is(err, pool.ErrNoPoolDeployed) {
		return http.StatusServiceUnavailable
	}
	var le *ledger.Error
	if errors.As(err, &le) {
		switch le.Kind {
		case ledger.KindConfiguration:
			return http.StatusServiceUnavailable
		case ledger.KindUnavailable, ledger.KindTimeout, ledger.KindStaleOracle:
			return http.StatusBadGateway
		}
	}
	return http.StatusUnprocessableEntity
}
