package database

import (
	"fmt"
	"time"

	"fxhedge/src/database/migrations"
	"fxhedge/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MainDB is the audit database shared by the repositories. It stays nil when
// persistence is disabled.
var MainDB *gorm.DB

// Models lists every table owned by the monitor.
func Models() []interface{} {
	return []interface{}{
		&model.PositionSnapshot{},
		&model.TransactionLog{},
		&model.Exception{},
		&migrations.DataMigration{},
	}
}

func dialectorFor(config Config) (gorm.Dialector, error) {
	switch config.Driver {
	case DriverPostgres:
		return postgres.Open(config.DatabaseURLMain), nil
	case DriverSQLite, "":
		return sqlite.Open(config.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.Driver)
	}
}

// Open connects with the configured driver and tunes the pool.
func Open(config Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(config)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB from GORM: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)
	return db, nil
}

// Migrate runs the schema auto-migration followed by the data migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}
	return nil
}

// InitMainDB initializes the audit database connection and runs migrations.
// This should be called once at application startup. When ENABLE_DB is false
// it is a no-op and MainDB stays nil.
func InitMainDB() error {
	config := GetConfig()
	if !config.EnableDB {
		logrus.Info("[database] persistence disabled, audit tables will not be written")
		return nil
	}

	db, err := Open(config)
	if err != nil {
		return err
	}

	// Assign to the global variable only after a successful connection.
	MainDB = db
	logrus.WithField("driver", config.Driver).Info("[database] MainDB connection established")

	if err := Migrate(MainDB); err != nil {
		return err
	}

	logrus.Info("[database] MainDB migrations completed")
	return nil
}
