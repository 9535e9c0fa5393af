package migrations

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PendingExpiry is how old a pending transaction log must be before a restart
// marks it unconfirmed. Nothing awaits it after the process that submitted it exits.
const PendingExpiry = 10 * time.Minute

// DataMigration tracks executed data migrations.
// Table name is fixed to avoid collisions with other models.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200;column:id"`
	AppliedAt time.Time `gorm:"not null;column:applied_at"`
}

func (DataMigration) TableName() string { return "data_migrations" }

func ensureDataMigrationsTable(db *gorm.DB) error {
	return db.AutoMigrate(&DataMigration{})
}

// RunOnce runs fn only if migrationID was not executed before.
// It records the migration as executed only after fn succeeds.
func RunOnce(db *gorm.DB, migrationID string, fn func(*gorm.DB) error) error {
	if db == nil {
		return nil
	}
	if migrationID == "" {
		return fmt.Errorf("migration id is empty")
	}
	if fn == nil {
		return fmt.Errorf("migration %q has nil fn", migrationID)
	}

	if err := ensureDataMigrationsTable(db); err != nil {
		return fmt.Errorf("ensure data migrations table: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var m DataMigration
		err := tx.First(&m, "id = ?", migrationID).Error
		if err == nil {
			// already applied
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check migration %q: %w", migrationID, err)
		}

		if err := fn(tx); err != nil {
			return fmt.Errorf("run migration %q: %w", migrationID, err)
		}

		rec := DataMigration{
			ID:        migrationID,
			AppliedAt: time.Now().UTC(),
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("record migration %q: %w", migrationID, err)
		}

		return nil
	})
}

// Run executes all data migrations that go beyond schema auto-migrations.
// Append new migrations at the bottom with a stable unique id.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	if err := RunOnce(db, "00001_backfill_tx_status", backfillTxStatus); err != nil {
		return err
	}

	if err := RunOnce(db, "00002_backfill_snapshot_health_status", backfillSnapshotHealthStatus); err != nil {
		return err
	}

	// runs on every start
	if err := ExpirePendingTransactions(db, time.Now().UTC().Add(-PendingExpiry)); err != nil {
		return err
	}

	return nil
}

func backfillTxStatus(db *gorm.DB) error {
	return db.Exec(`UPDATE transaction_logs SET status = 'pending' WHERE status IS NULL OR status = ''`).Error
}

func backfillSnapshotHealthStatus(db *gorm.DB) error {
	return db.Exec(`UPDATE position_snapshots SET health_status = 'not_applicable' WHERE (health_status IS NULL OR health_status = '') AND health_factor IS NULL`).Error
}

// ExpirePendingTransactions marks pending logs created before cutoff as unconfirmed.
func ExpirePendingTransactions(db *gorm.DB, cutoff time.Time) error {
	err := db.Exec(
		`UPDATE transaction_logs SET status = 'unconfirmed', message = 'no receipt observed before restart', updated_at = ? WHERE status = 'pending' AND created_at < ?`,
		time.Now().UTC(), cutoff,
	).Error
	if err != nil {
		return fmt.Errorf("expire pending transactions: %w", err)
	}
	return nil
}
