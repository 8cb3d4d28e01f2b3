// Package transaction records every gateway response as a row so payments
// can be audited and reported on.
package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yourorg/payment-gateway/internal/adapter"
)

// Transaction is one persisted gateway response.
type Transaction struct {
	ID                    uint                    `gorm:"primaryKey" json:"id"`
	Reference             string                  `gorm:"column:reference;size:36;not null;uniqueIndex" json:"reference"`
	Gateway               string                  `gorm:"column:gateway;size:64;not null;index" json:"gateway"`
	Operation             string                  `gorm:"column:operation;size:32;not null" json:"operation"`
	Kind                  adapter.TransactionKind `gorm:"column:kind;size:16;not null" json:"kind"`
	Token                 string                  `gorm:"column:token;size:255;index" json:"token"`
	ProviderTransactionID string                  `gorm:"column:provider_transaction_id;size:255;index" json:"provider_transaction_id"`
	IsSuccess             bool                    `gorm:"column:is_success" json:"is_success"`
	ActionRequired        bool                    `gorm:"column:action_required" json:"action_required"`
	Amount                decimal.Decimal         `gorm:"column:amount;type:numeric(20,6);not null" json:"amount"`
	Currency              string                  `gorm:"column:currency;size:3;not null" json:"currency"`
	Error                 string                  `gorm:"column:error;type:text" json:"error,omitempty"`
	CustomerID            string                  `gorm:"column:customer_id;size:255" json:"customer_id,omitempty"`
	CardLast4             string                  `gorm:"column:card_last4;size:4" json:"card_last4,omitempty"`
	CardBrand             string                  `gorm:"column:card_brand;size:32" json:"card_brand,omitempty"`
	RawResponse           string                  `gorm:"column:raw_response;type:text" json:"-"`
	CreatedAt             time.Time               `gorm:"column:created_at;index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "gateway_transactions"
}

// BeforeCreate assigns a reference when the caller did not.
func (t *Transaction) BeforeCreate(_ *gorm.DB) error {
	if t.Reference == "" {
		t.Reference = uuid.NewString()
	}
	return nil
}

// FromResponse builds the row recorded for resp. token is the token the
// operation was called with.
func FromResponse(gateway, operation, token string, resp adapter.GatewayResponse) *Transaction {
	t := &Transaction{
		Gateway:               gateway,
		Operation:             operation,
		Kind:                  resp.Kind,
		Token:                 token,
		ProviderTransactionID: resp.TransactionID,
		IsSuccess:             resp.IsSuccess,
		ActionRequired:        resp.ActionRequired,
		Amount:                resp.Amount,
		Currency:              adapter.NormalizeCurrency(resp.Currency),
		Error:                 resp.Error,
		CustomerID:            resp.CustomerID,
		RawResponse:           string(resp.RawResponse),
	}
	if resp.CardInfo != nil {
		t.CardLast4 = resp.CardInfo.Last4
		t.CardBrand = resp.CardInfo.Brand
	}
	return t
}

// Repository persists transactions.
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	// ListByToken returns rows whose token or provider transaction id
	// equals token, oldest first.
	ListByToken(ctx context.Context, token string) ([]Transaction, error)
	// ListBetween returns rows created in [from, to), oldest first.
	ListBetween(ctx context.Context, from, to time.Time) ([]Transaction, error)
}
