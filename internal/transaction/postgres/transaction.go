package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourorg/payment-gateway/internal/transaction"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) transaction.Repository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) ListByToken(ctx context.Context, token string) ([]transaction.Transaction, error) {
	var txs []transaction.Transaction
	err := r.db.WithContext(ctx).
		Where("token = ? OR provider_transaction_id = ?", token, token).
		Order("created_at ASC, id ASC").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions by token: %w", err)
	}
	return txs, nil
}

func (r *TransactionRepository) ListBetween(ctx context.Context, from, to time.Time) ([]transaction.Transaction, error) {
	var txs []transaction.Transaction
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC, id ASC").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions between: %w", err)
	}
	return txs, nil
}
