package repository

import (
	"context"

	"fxhedge/src/database"
	"fxhedge/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ExceptionRepository handles persistence of system exceptions.
type ExceptionRepository struct {
	db *gorm.DB
}

// NewExceptionRepository creates a new repository instance.
func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{
		db: database.MainDB,
	}
}

func (r *ExceptionRepository) WithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create persists a new exception in the database. Without a database the
// exception is only logged.
func (r *ExceptionRepository) Create(
	ctx context.Context,
	exc *model.Exception,
) error {

	entry := logger.WithFields(map[string]interface{}{
		"service": exc.Service,
		"module":  exc.Module,
		"method":  exc.Method,
		"kind":    exc.Kind,
		"level":   exc.Level,
	})
	if r.db == nil {
		entry.WithField("message", exc.Message).Error("System exception (not persisted)")
		return nil
	}
	entry.Error("Persisting system exception")

	return r.db.WithContext(ctx).Create(exc).Error
}

// FindLatest returns the newest exceptions first.
func (r *ExceptionRepository) FindLatest(ctx context.Context, limit int) ([]model.Exception, error) {
	if r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	var out []model.Exception
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}
