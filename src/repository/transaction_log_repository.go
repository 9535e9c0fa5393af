package repository

import (
	"context"
	"errors"

	"fxhedge/src/database"
	"fxhedge/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrTxLogNotFound = errors.New("transaction log not found")

// TransactionLogRepository records write attempts and their final status.
type TransactionLogRepository struct {
	db *gorm.DB
}

func NewTransactionLogRepository() *TransactionLogRepository {
	return &TransactionLogRepository{db: database.MainDB}
}

func (r *TransactionLogRepository) WithDB(db *gorm.DB) *TransactionLogRepository {
	return &TransactionLogRepository{db: db}
}

func (r *TransactionLogRepository) Create(ctx context.Context, entry *model.TransactionLog) error {
	if r.db == nil {
		return nil
	}
	if entry.Status == "" {
		entry.Status = model.TxStatusPending
	}

	logger.WithFields(map[string]interface{}{
		"repo":           "TransactionLogRepository",
		"op":             "Create",
		"correlation_id": entry.CorrelationID,
		"action":         entry.Action,
	}).Debug("Creating transaction log")

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":           "TransactionLogRepository",
			"op":             "Create",
			"correlation_id": entry.CorrelationID,
		}).WithError(err).Error("Failed to create transaction log")
		return err
	}
	return nil
}

// TxUpdate carries the fields changed when an attempt progresses.
type TxUpdate struct {
	Status    model.TxStatus
	TxHash    string
	ErrorKind string
	Message   string
}

// UpdateStatus moves the log identified by correlationID to a new status.
func (r *TransactionLogRepository) UpdateStatus(ctx context.Context, correlationID string, upd TxUpdate) error {
	if r.db == nil {
		return nil
	}
	fields := map[string]interface{}{"status": upd.Status}
	if upd.TxHash != "" {
		fields["tx_hash"] = upd.TxHash
	}
	if upd.ErrorKind != "" {
		fields["error_kind"] = upd.ErrorKind
	}
	if upd.Message != "" {
		fields["message"] = upd.Message
	}

	res := r.db.WithContext(ctx).
		Model(&model.TransactionLog{}).
		Where("correlation_id = ?", correlationID).
		Updates(fields)
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":           "TransactionLogRepository",
			"op":             "UpdateStatus",
			"correlation_id": correlationID,
		}).WithError(res.Error).Error("Failed to update transaction log")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTxLogNotFound
	}

	logger.WithFields(map[string]interface{}{
		"repo":           "TransactionLogRepository",
		"op":             "UpdateStatus",
		"correlation_id": correlationID,
		"status":         upd.Status,
	}).Info("Transaction log updated")
	return nil
}

// FindByCorrelationID returns (nil, nil) when the log does not exist.
func (r *TransactionLogRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*model.TransactionLog, error) {
	if r.db == nil {
		return nil, nil
	}
	var entry model.TransactionLog
	err := r.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// FindByOwner returns the newest logs for owner first.
func (r *TransactionLogRepository) FindByOwner(ctx context.Context, owner string, limit int) ([]model.TransactionLog, error) {
	if r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	var out []model.TransactionLog
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
