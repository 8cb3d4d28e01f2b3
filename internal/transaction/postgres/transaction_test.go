package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/transaction"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&transaction.Transaction{}))
	return db
}

func TestTransactionRepository_CreateAndListByToken(t *testing.T) {
	repo := NewTransactionRepository(setupDB(t))
	ctx := context.Background()

	auth := transaction.FromResponse("stripe", "authorize", "pm_card_visa", adapter.GatewayResponse{
		IsSuccess: true, TransactionID: "pi_1", Amount: decimal.RequireFromString("10.99"),
		Currency: "usd", Kind: adapter.KindAuth,
		CardInfo:    &adapter.CreditCardInfo{Last4: "4242", Brand: "visa"},
		RawResponse: []byte(`{"id":"pi_1"}`),
	})
	require.NoError(t, repo.Create(ctx, auth))
	assert.NotZero(t, auth.ID)
	assert.Len(t, auth.Reference, 36)

	capture := transaction.FromResponse("stripe", "capture", "pi_1", adapter.GatewayResponse{
		IsSuccess: true, TransactionID: "pi_1", Amount: decimal.RequireFromString("10.99"),
		Currency: "USD", Kind: adapter.KindCapture,
	})
	require.NoError(t, repo.Create(ctx, capture))
	require.NoError(t, repo.Create(ctx, transaction.FromResponse("stripe", "capture", "pi_other", adapter.GatewayResponse{
		TransactionID: "pi_other", Amount: decimal.NewFromInt(1), Currency: "USD", Kind: adapter.KindCapture,
	})))

	txs, err := repo.ListByToken(ctx, "pi_1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, adapter.KindAuth, txs[0].Kind)
	assert.Equal(t, "USD", txs[0].Currency)
	assert.Equal(t, "4242", txs[0].CardLast4)
	assert.JSONEq(t, `{"id":"pi_1"}`, txs[0].RawResponse)
	assert.True(t, decimal.RequireFromString("10.99").Equal(txs[0].Amount))
	assert.Equal(t, adapter.KindCapture, txs[1].Kind)
}

func TestTransactionRepository_ListBetween(t *testing.T) {
	repo := NewTransactionRepository(setupDB(t))
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, hours := range []int{-2, 1, 5, 30} {
		tx := transaction.FromResponse("dummy", "authorize", "tok", adapter.GatewayResponse{
			TransactionID: "t", Amount: decimal.NewFromInt(int64(i + 1)), Currency: "EUR", Kind: adapter.KindAuth,
		})
		tx.CreatedAt = base.Add(time.Duration(hours) * time.Hour)
		require.NoError(t, repo.Create(ctx, tx))
	}

	txs, err := repo.ListBetween(ctx, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.True(t, decimal.NewFromInt(2).Equal(txs[0].Amount))
	assert.True(t, decimal.NewFromInt(3).Equal(txs[1].Amount))
}
