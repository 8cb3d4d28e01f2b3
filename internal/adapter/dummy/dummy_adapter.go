// Package dummy provides an in-process gateway for development and tests.
package dummy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/yourorg/payment-gateway/internal/adapter"
)

// GatewayName is the registry name of the dummy gateway.
const GatewayName = "dummy"

// Tokens with special meaning. Any other non-empty token succeeds.
const (
	TokenDeclined       = "declined"
	TokenRequiresAction = "requires_action"
)

// DummyAdapter answers every operation locally without network calls.
type DummyAdapter struct {
	name string
	// OperationFunc, when set, replaces the built-in token rules.
	OperationFunc func(kind adapter.TransactionKind, data adapter.PaymentData) (adapter.GatewayResponse, error)
	Sources       map[string][]adapter.CustomerSource
}

// NewDummyAdapter creates a DummyAdapter registered under name. An empty
// name uses GatewayName.
func NewDummyAdapter(name string) *DummyAdapter {
	if name == "" {
		name = GatewayName
	}
	return &DummyAdapter{name: name, Sources: map[string][]adapter.CustomerSource{}}
}

func (d *DummyAdapter) Name() string {
	return d.name
}

func (d *DummyAdapter) Authorize(_ context.Context, data adapter.PaymentData, cfg adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	kind := adapter.KindAuth
	if cfg.AutoCapture {
		kind = adapter.KindCapture
	}
	return d.run(kind, data)
}

func (d *DummyAdapter) Capture(_ context.Context, data adapter.PaymentData, _ adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	return d.run(adapter.KindCapture, data)
}

func (d *DummyAdapter) Confirm(_ context.Context, data adapter.PaymentData, _ adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	return d.run(adapter.KindConfirm, data)
}

func (d *DummyAdapter) Refund(_ context.Context, data adapter.PaymentData, _ adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	return d.run(adapter.KindRefund, data)
}

func (d *DummyAdapter) Void(_ context.Context, data adapter.PaymentData, _ adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	return d.run(adapter.KindVoid, data)
}

func (d *DummyAdapter) ProcessPayment(ctx context.Context, data adapter.PaymentData, cfg adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	return d.Authorize(ctx, data, cfg)
}

func (d *DummyAdapter) ListClientSources(_ context.Context, _ adapter.GatewayConfig, customerID string) ([]adapter.CustomerSource, error) {
	return d.Sources[customerID], nil
}

// ClientToken returns the configured public key, or a fresh random token
// when none is configured.
func (d *DummyAdapter) ClientToken(cfg adapter.GatewayConfig) (string, error) {
	if key := cfg.ConnectionParams[adapter.ParamPublicKey]; key != "" {
		return key, nil
	}
	return uuid.NewString(), nil
}

func (d *DummyAdapter) run(kind adapter.TransactionKind, data adapter.PaymentData) (adapter.GatewayResponse, error) {
	if data.Token == "" {
		return adapter.GatewayResponse{}, fmt.Errorf("dummy: %w: token is required", adapter.ErrInvalidPaymentData)
	}
	if _, err := adapter.ToProviderUnits(data.Amount, data.Currency); err != nil {
		return adapter.GatewayResponse{}, fmt.Errorf("dummy: %w", err)
	}
	if d.OperationFunc != nil {
		return d.OperationFunc(kind, data)
	}

	resp := adapter.GatewayResponse{
		IsSuccess:     true,
		TransactionID: uuid.NewString(),
		Amount:        data.Amount,
		Currency:      adapter.NormalizeCurrency(data.Currency),
		Kind:          kind,
		CustomerID:    data.CustomerID,
		CardInfo:      &adapter.CreditCardInfo{Last4: "4242", ExpYear: 2222, ExpMonth: 12, Brand: "visa"},
	}
	switch data.Token {
	case TokenDeclined:
		resp.IsSuccess = false
		resp.TransactionID = data.Token
		resp.Error = "Card declined"
		resp.CardInfo = nil
	case TokenRequiresAction:
		resp.ActionRequired = true
	}
	raw, err := json.Marshal(map[string]any{"dummy": true, "token": data.Token, "kind": kind})
	if err != nil {
		return adapter.GatewayResponse{}, fmt.Errorf("dummy: marshal raw response: %w", err)
	}
	resp.RawResponse = raw
	return resp, nil
}

var _ adapter.Adapter = (*DummyAdapter)(nil)
