// Package adapter defines the contract for payment gateway adapters
// and the types they exchange with the payment orchestration layer.
// Adapters handle all provider-specific API calls and normalize raw
// provider responses and faults into a common GatewayResponse.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrMissingConnectionParam is returned when GatewayConfig lacks a required key.
	ErrMissingConnectionParam = errors.New("missing gateway connection parameter")
	// ErrInvalidPaymentData is returned when PaymentData cannot describe a transaction.
	ErrInvalidPaymentData = errors.New("invalid payment data")
)

// Connection parameter keys understood by adapters.
const (
	ParamPublicKey  = "public_key"
	ParamPrivateKey = "private_key"
)

// TransactionKind tags a GatewayResponse with the operation that produced it.
type TransactionKind string

const (
	KindAuth    TransactionKind = "auth"
	KindCapture TransactionKind = "capture"
	KindConfirm TransactionKind = "confirm"
	KindRefund  TransactionKind = "refund"
	KindVoid    TransactionKind = "void"
)

func (k TransactionKind) String() string { return string(k) }

// Valid reports whether k is one of the known kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindAuth, KindCapture, KindConfirm, KindRefund, KindVoid:
		return true
	}
	return false
}

// UnmarshalText rejects kinds outside the closed set.
func (k *TransactionKind) UnmarshalText(text []byte) error {
	kind := TransactionKind(strings.ToLower(string(text)))
	if !kind.Valid() {
		return fmt.Errorf("unknown transaction kind %q", string(text))
	}
	*k = kind
	return nil
}

// Address is the shipping address attached to a payment.
type Address struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	CompanyName    string `json:"company_name,omitempty"`
	StreetAddress1 string `json:"street_address_1"`
	StreetAddress2 string `json:"street_address_2,omitempty"`
	City           string `json:"city"`
	CityArea       string `json:"city_area,omitempty"`
	PostalCode     string `json:"postal_code"`
	Country        string `json:"country"`
	CountryArea    string `json:"country_area,omitempty"`
	Phone          string `json:"phone,omitempty"`
}

// FullName joins first and last name the way processors expect a recipient.
func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// PaymentData describes one attempted transaction. It is created by the
// caller per attempt and never mutated by adapters.
type PaymentData struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Token         string          `json:"token"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	ReuseSource   bool            `json:"reuse_source"`
	Shipping      *Address        `json:"shipping,omitempty"`
}

// GatewayConfig holds connection parameters and behavioral flags for a gateway.
type GatewayConfig struct {
	ConnectionParams map[string]string
	AutoCapture      bool
	StoreCustomer    bool
}

// Param returns a connection parameter or ErrMissingConnectionParam.
func (c GatewayConfig) Param(key string) (string, error) {
	v := c.ConnectionParams[key]
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingConnectionParam, key)
	}
	return v, nil
}

// CreditCardInfo is the display projection of a card.
type CreditCardInfo struct {
	Last4      string `json:"last_4"`
	ExpYear    int64  `json:"exp_year"`
	ExpMonth   int64  `json:"exp_month"`
	Brand      string `json:"brand,omitempty"`
	NameOnCard string `json:"name_on_card,omitempty"`
}

// CustomerSource is a payment method stored on file with a provider.
type CustomerSource struct {
	ID             string         `json:"id"`
	Gateway        string         `json:"gateway"`
	CreditCardInfo CreditCardInfo `json:"credit_card_info"`
}

// GatewayResponse is the uniform result of every payment operation,
// carrying either the success or the failure variant.
type GatewayResponse struct {
	IsSuccess      bool            `json:"is_success"`
	ActionRequired bool            `json:"action_required"`
	TransactionID  string          `json:"transaction_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Error          string          `json:"error,omitempty"`
	Kind           TransactionKind `json:"kind"`
	CardInfo       *CreditCardInfo `json:"card_info,omitempty"`
	RawResponse    json.RawMessage `json:"raw_response,omitempty"`
	CustomerID     string          `json:"customer_id,omitempty"`
}

// Adapter is implemented by each payment gateway.
//
// Payment operations never return provider faults as errors: declines,
// API and network failures come back as a GatewayResponse with
// IsSuccess=false. The error return is reserved for caller defects such
// as missing connection parameters or malformed PaymentData.
type Adapter interface {
	// Name returns the gateway name (e.g., "stripe").
	Name() string

	Authorize(ctx context.Context, data PaymentData, cfg GatewayConfig) (GatewayResponse, error)
	Capture(ctx context.Context, data PaymentData, cfg GatewayConfig) (GatewayResponse, error)
	Confirm(ctx context.Context, data PaymentData, cfg GatewayConfig) (GatewayResponse, error)
	Refund(ctx context.Context, data PaymentData, cfg GatewayConfig) (GatewayResponse, error)
	Void(ctx context.Context, data PaymentData, cfg GatewayConfig) (GatewayResponse, error)

	// ProcessPayment always delegates to Authorize.
	ProcessPayment(ctx context.Context, data PaymentData, cfg GatewayConfig) (GatewayResponse, error)

	// ListClientSources lists card payment methods stored for a customer.
	ListClientSources(ctx context.Context, cfg GatewayConfig, customerID string) ([]CustomerSource, error)

	// ClientToken returns the publishable token used by storefront clients.
	ClientToken(cfg GatewayConfig) (string, error)
}
