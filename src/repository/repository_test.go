package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"fxhedge/src/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in memory db: %v", err)
	}
	if err := db.AutoMigrate(&model.PositionSnapshot{}, &model.TransactionLog{}, &model.Exception{}); err != nil {
		t.Fatalf("failed to automigrate: %v", err)
	}
	return db
}

func TestSnapshotRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&SnapshotRepository{}).WithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "position_snapshots"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	snap := &model.PositionSnapshot{
		Owner:      "0xabc",
		Currency:   "BRL",
		Collateral: decimal.RequireFromString("1000"),
		RiskTier:   "safe",
	}
	require.NoError(t, repo.Create(context.Background(), snap))
	assert.Equal(t, uint(7), snap.ID)
	assert.False(t, snap.CapturedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryQueries(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&SnapshotRepository{}).WithDB(db)
	captured := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "owner", "risk_tier", "captured_at"}).
			AddRow(2, "0xabc", "warning", captured)
	}

	t.Run("latest", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "position_snapshots" WHERE owner = $1 ORDER BY captured_at DESC, id DESC`)).
			WithArgs("0xabc", 1).
			WillReturnRows(rows())

		got, err := repo.Latest(context.Background(), "0xabc")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "warning", got.RiskTier)
	})

	t.Run("latest not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "position_snapshots" WHERE owner = $1`)).
			WithArgs("0xdef", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		got, err := repo.Latest(context.Background(), "0xdef")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("search by tier with limit", func(t *testing.T) {
		tier := "warning"
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "position_snapshots" WHERE owner = $1 AND risk_tier = $2 ORDER BY captured_at DESC, id DESC LIMIT $3`)).
			WithArgs("0xabc", tier, 5).
			WillReturnRows(rows())

		got, err := repo.Search(context.Background(), SnapshotSearchOptions{Owner: "0xabc", RiskTier: &tier, Limit: 5})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionLogRepositoryUpdateStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&TransactionLogRepository{}).WithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "transaction_logs" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), "corr-1", TxUpdate{Status: model.TxStatusConfirmed, TxHash: "0x01"})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "transaction_logs" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err = repo.UpdateStatus(context.Background(), "missing", TxUpdate{Status: model.TxStatusFailed})
	assert.True(t, errors.Is(err, ErrTxLogNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionLogRepositoryLifecycle(t *testing.T) {
	db := newSQLiteDB(t)
	repo := (&TransactionLogRepository{}).WithDB(db)
	ctx := context.Background()

	entry := &model.TransactionLog{CorrelationID: "c-1", Owner: "0xabc", Action: model.ActionReduce}
	require.NoError(t, repo.Create(ctx, entry))
	assert.Equal(t, model.TxStatusPending, entry.Status)

	require.NoError(t, repo.UpdateStatus(ctx, "c-1", TxUpdate{Status: model.TxStatusUnconfirmed, TxHash: "0xfeed", Message: "submitted, unconfirmed"}))

	got, err := repo.FindByCorrelationID(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.TxStatusUnconfirmed, got.Status)
	assert.Equal(t, "0xfeed", got.TxHash)

	list, err := repo.FindByOwner(ctx, "0xabc", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	missing, err := repo.FindByCorrelationID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoriesWithoutDatabase(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, (&SnapshotRepository{}).Create(ctx, &model.PositionSnapshot{}))
	assert.NoError(t, (&TransactionLogRepository{}).Create(ctx, &model.TransactionLog{}))
	assert.NoError(t, (&TransactionLogRepository{}).UpdateStatus(ctx, "x", TxUpdate{Status: model.TxStatusFailed}))
	assert.NoError(t, (&ExceptionRepository{}).Create(ctx, model.NewException("txflow", "Activate", "configuration", model.LevelError, errors.New("no signer"), nil)))
}

func TestExceptionRepositoryCreate(t *testing.T) {
	db := newSQLiteDB(t)
	repo := (&ExceptionRepository{}).WithDB(db)
	ctx := context.Background()

	exc := model.NewException("ledger", "Write", "configuration", model.LevelError, errors.New("no signer"), map[string]interface{}{"method": "approve"})
	require.NoError(t, repo.Create(ctx, exc))

	got, err := repo.FindLatest(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fxhedge", got[0].Service)
	assert.Contains(t, got[0].Context, `"method":"approve"`)
}
