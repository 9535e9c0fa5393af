package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"fxhedge/src/dashboard"

	"github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

type viewSource interface {
	View() *dashboard.View
}

// PositionViewHandler serves the latest evaluated view of the watched account.
func PositionViewHandler(src viewSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, src.View())
	}
}

type ratesResponse struct {
	UpdatedAt   time.Time            `json:"updated_at"`
	Rates       []dashboard.RateCard `json:"rates"`
	Unavailable []string             `json:"unavailable,omitempty"`
}

// RatesHandler serves the per-currency price cards only.
func RatesHandler(src viewSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := src.View()
		writeJSON(w, http.StatusOK, ratesResponse{UpdatedAt: v.UpdatedAt, Rates: v.Rates, Unavailable: v.Unavailable})
	}
}

type accountSwitcher interface {
	SwitchOwner(owner common.Address) (uint64, error)
}

type switchAccountPayload struct {
	Address string `json:"address"`
}

// SwitchAccountHandler points the monitor at another account. Results of polls
// started for the previous account are discarded. A session pinned to the
// signer answers 409.
func SwitchAccountHandler(s accountSwitcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload switchAccountPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid account payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		if !common.IsHexAddress(payload.Address) {
			http.Error(w, "invalid address", http.StatusBadRequest)
			return
		}
		gen, err := s.SwitchOwner(common.HexToAddress(payload.Address))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"owner":      common.HexToAddress(payload.Address).Hex(),
			"generation": gen,
		})
	}
}
