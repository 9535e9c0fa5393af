package handler

import (
	"context"
	"net/http"

	"fxhedge/src/pool"

	logger "github.com/sirupsen/logrus"
)

// PoolLoader reads the funding pool view for the watched account.
type PoolLoader func(ctx context.Context) (*pool.View, error)

// PoolHandler serves the funding pool figures and the caller's LP position.
func PoolHandler(load PoolLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := load(r.Context())
		if err != nil {
			logger.WithError(err).Warn("failed to load funding pool")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
