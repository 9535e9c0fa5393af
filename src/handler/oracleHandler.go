package handler

import (
	"context"
	"net/http"
	"time"

	"fxhedge/src/model"

	logger "github.com/sirupsen/logrus"
)

type oraclePublisher interface {
	Publish(ctx context.Context, updatedBy string) (*model.OracleUpdateResult, error)
}

type triggerAuthorizer interface {
	Authorize(r *http.Request) (string, error)
}

// OracleUpdateHandler pushes fresh external rates on-chain. Callers are the
// cron scheduler, holders of the API key, or anyone in dev mode.
func OracleUpdateHandler(pub oraclePublisher, auth triggerAuthorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updatedBy, err := auth.Authorize(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}

		result, err := pub.Publish(r.Context(), updatedBy)
		if err != nil {
			logger.WithError(err).WithField("updated_by", updatedBy).Error("oracle update failed")
			if result == nil {
				result = &model.OracleUpdateResult{Timestamp: time.Now().UTC(), UpdatedBy: updatedBy}
			}
			result.Success = false
			result.Error = err.Error()
			status := statusFor(err)
			if status == http.StatusUnprocessableEntity {
				status = http.StatusInternalServerError
			}
			writeJSON(w, status, result)
			return
		}
		if result.Status == model.TxStatusUnconfirmed {
			writeJSON(w, http.StatusAccepted, result)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
