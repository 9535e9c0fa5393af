package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"fxhedge/src/model"
	"fxhedge/src/repository"

	"github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

type snapshotSearcher interface {
	Search(ctx context.Context, options repository.SnapshotSearchOptions) ([]model.PositionSnapshot, error)
}

type ownerSource interface {
	Owner() (common.Address, uint64)
}

// SearchSnapshotsHandler lists recorded position snapshots, newest first.
// Supports pagination and filters (owner, riskTier, since). The owner defaults
// to the watched account.
func SearchSnapshotsHandler(repo snapshotSearcher, owners ownerSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, _ := owners.Owner()
		if ownerParam := r.URL.Query().Get("owner"); ownerParam != "" {
			if !common.IsHexAddress(ownerParam) {
				http.Error(w, "invalid owner", http.StatusBadRequest)
				return
			}
			owner = common.HexToAddress(ownerParam)
		}

		var riskTier *string
		if tierParam := r.URL.Query().Get("riskTier"); tierParam != "" {
			riskTier = &tierParam
		}

		var since *time.Time
		if sinceParam := r.URL.Query().Get("since"); sinceParam != "" {
			parsed, err := time.Parse(time.RFC3339, sinceParam)
			if err != nil {
				http.Error(w, "invalid since", http.StatusBadRequest)
				return
			}
			since = &parsed
		}

		page := 1
		if pageParam := r.URL.Query().Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 20
		if sizeParam := r.URL.Query().Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 || parsedSize > 500 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = parsedSize
		}

		snapshots, err := repo.Search(r.Context(), repository.SnapshotSearchOptions{
			Owner:    owner.Hex(),
			RiskTier: riskTier,
			Since:    since,
			Limit:    pageSize,
			Offset:   (page - 1) * pageSize,
		})
		if err != nil {
			logger.WithError(err).Error("failed to search snapshots")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if snapshots == nil {
			snapshots = []model.PositionSnapshot{}
		}
		writeJSON(w, http.StatusOK, snapshots)
	}
}

// DefaultSearchSnapshotsHandler wires the handler to the production repository implementation.
func DefaultSearchSnapshotsHandler(owners ownerSource) http.HandlerFunc {
	return SearchSnapshotsHandler(repository.NewSnapshotRepository(), owners)
}
