package repository

import (
	"context"
	"errors"
	"time"

	"fxhedge/src/database"
	"fxhedge/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SnapshotRepository stores the audit trail of evaluated positions.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *SnapshotRepository) WithDB(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Enabled() bool { return r != nil && r.db != nil }

func (r *SnapshotRepository) Create(ctx context.Context, snap *model.PositionSnapshot) error {
	if !r.Enabled() {
		return nil
	}
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Create(snap).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "SnapshotRepository",
			"op":    "Create",
			"owner": snap.Owner,
		}).WithError(err).Error("Failed to create snapshot")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "SnapshotRepository",
		"op":        "Create",
		"owner":     snap.Owner,
		"risk_tier": snap.RiskTier,
	}).Debug("Snapshot stored")
	return nil
}

// Latest returns the newest snapshot for owner, or (nil, nil) when there is none.
func (r *SnapshotRepository) Latest(ctx context.Context, owner string) (*model.PositionSnapshot, error) {
	if !r.Enabled() {
		return nil, nil
	}
	var snap model.PositionSnapshot
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("captured_at DESC, id DESC").
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

type SnapshotSearchOptions struct {
	Owner    string
	RiskTier *string
	Since    *time.Time
	Limit    int
	Offset   int
}

// Search lists snapshots for an owner, newest first.
func (r *SnapshotRepository) Search(ctx context.Context, opts SnapshotSearchOptions) ([]model.PositionSnapshot, error) {
	if !r.Enabled() {
		return nil, nil
	}
	q := r.db.WithContext(ctx).Where("owner = ?", opts.Owner)
	if opts.RiskTier != nil {
		q = q.Where("risk_tier = ?", *opts.RiskTier)
	}
	if opts.Since != nil {
		q = q.Where("captured_at >= ?", *opts.Since)
	}
	q = q.Order("captured_at DESC, id DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var out []model.PositionSnapshot
	if err := q.Find(&out).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "SnapshotRepository",
			"op":    "Search",
			"owner": opts.Owner,
		}).WithError(err).Error("Failed to search snapshots")
		return nil, err
	}
	return out, nil
}
