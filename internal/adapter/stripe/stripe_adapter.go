// Package stripe implements the payment gateway adapter for Stripe
// payment intents.
package stripe

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/adapter"
)

// GatewayName is the registry name of this adapter.
const GatewayName = "stripe"

var errNoCharge = errors.New("payment has no charge to refund")

// StripeAdapter implements adapter.Adapter for Stripe. It keeps no state
// between calls: every operation builds a client from the supplied
// GatewayConfig and re-fetches remote objects by token.
type StripeAdapter struct {
	newClient ClientFactory
	log       *zap.Logger
}

// NewStripeAdapter creates a StripeAdapter. A nil factory uses stripe-go
// with its default backends; a nil logger disables logging.
func NewStripeAdapter(factory ClientFactory, log *zap.Logger) *StripeAdapter {
	if factory == nil {
		factory = SDKClientFactory(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StripeAdapter{newClient: factory, log: log}
}

// Name returns the name of the provider.
func (s *StripeAdapter) Name() string {
	return GatewayName
}

func (s *StripeAdapter) client(cfg adapter.GatewayConfig) (Client, error) {
	key, err := cfg.Param(adapter.ParamPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("stripe: %w", err)
	}
	return s.newClient(key), nil
}

func requireToken(data adapter.PaymentData) error {
	if data.Token == "" {
		return fmt.Errorf("stripe: %w: token is required", adapter.ErrInvalidPaymentData)
	}
	return nil
}

// Authorize creates and confirms a payment intent for the payment method
// in data.Token.
func (s *StripeAdapter) Authorize(ctx context.Context, data adapter.PaymentData, cfg adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	kind := adapter.KindAuth
	captureMethod := captureMethodManual
	if cfg.AutoCapture {
		kind = adapter.KindCapture
		captureMethod = captureMethodAutomatic
	}
	if err := requireToken(data); err != nil {
		return adapter.GatewayResponse{}, err
	}
	if data.Currency == "" || !data.Amount.IsPositive() {
		return adapter.GatewayResponse{}, fmt.Errorf("stripe: %w: positive amount and currency are required", adapter.ErrInvalidPaymentData)
	}
	client, err := s.client(cfg)
	if err != nil {
		return adapter.GatewayResponse{}, err
	}

	futureUsage := futureUsageOnSession
	if cfg.StoreCustomer {
		futureUsage = futureUsageOffSession
	}
	customerID := ""
	if data.ReuseSource {
		customerID = data.CustomerID
	}
	currency := adapter.ProviderCurrency(data.Currency)
	amount, err := adapter.ToProviderUnits(data.Amount, currency)
	if err != nil {
		return adapter.GatewayResponse{}, fmt.Errorf("stripe: %w", err)
	}

	intent, err := client.CreatePaymentIntent(ctx, IntentParams{
		PaymentMethod:    data.Token,
		Amount:           amount,
		Currency:         currency,
		CaptureMethod:    captureMethod,
		SetupFutureUsage: futureUsage,
		Customer:         customerID,
		ReceiptEmail:     data.CustomerEmail,
		Shipping:         data.Shipping,
	})
	if err == nil && cfg.StoreCustomer && customerID == "" {
		var customer *Customer
		customer, err = client.CreateCustomer(ctx, intent.PaymentMethodID)
		if err == nil {
			customerID = customer.ID
		}
	}
	if err != nil {
		return s.errorResponse(kind, err, data, false), nil
	}

	success := intent.Status == StatusSucceeded ||
		intent.Status == StatusRequiresCapture ||
		intent.Status == StatusRequiresAction
	resp := successResponse(intent, kind, success)
	resp.CustomerID = customerID
	fillCardDetails(intent, &resp)
	return resp, nil
}

// Capture captures a previously authorized payment intent.
func (s *StripeAdapter) Capture(ctx context.Context, data adapter.PaymentData, cfg adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	if err := requireToken(data); err != nil {
		return adapter.GatewayResponse{}, err
	}
	client, err := s.client(cfg)
	if err != nil {
		return adapter.GatewayResponse{}, err
	}

	intent, err := client.RetrievePaymentIntent(ctx, data.Token)
	if err != nil {
		return s.errorResponse(adapter.KindCapture, err, data, false), nil
	}
	captured, err := client.CapturePaymentIntent(ctx, intent.ID)
	if err != nil {
		return s.errorResponse(adapter.KindCapture, err, data, intent.Status == StatusRequiresAction), nil
	}

	success := captured.Status == StatusSucceeded || captured.Status == StatusRequiresAction
	resp := successResponse(captured, adapter.KindCapture, success)
	fillCardDetails(captured, &resp)
	return resp, nil
}

// Confirm confirms a payment intent, typically after a customer action.
func (s *StripeAdapter) Confirm(ctx context.Context, data adapter.PaymentData, cfg adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	if err := requireToken(data); err != nil {
		return adapter.GatewayResponse{}, err
	}
	client, err := s.client(cfg)
	if err != nil {
		return adapter.GatewayResponse{}, err
	}

	intent, err := client.ConfirmPaymentIntent(ctx, data.Token)
	if err != nil {
		return s.errorResponse(adapter.KindConfirm, err, data, false), nil
	}
	resp := successResponse(intent, adapter.KindConfirm, intent.Status == StatusSucceeded)
	fillCardDetails(intent, &resp)
	return resp, nil
}

// Refund refunds data.Amount of the intent's charge.
func (s *StripeAdapter) Refund(ctx context.Context, data adapter.PaymentData, cfg adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	if err := requireToken(data); err != nil {
		return adapter.GatewayResponse{}, err
	}
	if data.Currency == "" {
		return adapter.GatewayResponse{}, fmt.Errorf("stripe: %w: currency is required", adapter.ErrInvalidPaymentData)
	}
	amount, err := adapter.ToProviderUnits(data.Amount, data.Currency)
	if err != nil {
		return adapter.GatewayResponse{}, fmt.Errorf("stripe: %w", err)
	}
	client, err := s.client(cfg)
	if err != nil {
		return adapter.GatewayResponse{}, err
	}

	intent, refund, err := s.refundIntent(ctx, client, data.Token, &amount)
	if err != nil {
		return s.errorResponse(adapter.KindRefund, err, data, false), nil
	}
	resp := successResponse(intent, adapter.KindRefund, refund.Status == StatusRefundSucceeded)
	resp.Amount = data.Amount
	resp.Currency = adapter.NormalizeCurrency(refund.Currency)
	return resp, nil
}

// Void refunds the intent's charge in full.
func (s *StripeAdapter) Void(ctx context.Context, data adapter.PaymentData, cfg adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	if err := requireToken(data); err != nil {
		return adapter.GatewayResponse{}, err
	}
	client, err := s.client(cfg)
	if err != nil {
		return adapter.GatewayResponse{}, err
	}

	intent, refund, err := s.refundIntent(ctx, client, data.Token, nil)
	if err != nil {
		return s.errorResponse(adapter.KindVoid, err, data, false), nil
	}
	resp := successResponse(intent, adapter.KindVoid, true)
	resp.Currency = adapter.NormalizeCurrency(refund.Currency)
	resp.RawResponse = refund.Raw
	return resp, nil
}

func (s *StripeAdapter) refundIntent(ctx context.Context, client Client, token string, amount *int64) (*Intent, *Refund, error) {
	intent, err := client.RetrievePaymentIntent(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if intent.LatestCharge == nil || intent.LatestCharge.ID == "" {
		return nil, nil, errNoCharge
	}
	refund, err := client.RefundCharge(ctx, intent.LatestCharge.ID, amount)
	if err != nil {
		return nil, nil, err
	}
	return intent, refund, nil
}

// ProcessPayment delegates to Authorize.
func (s *StripeAdapter) ProcessPayment(ctx context.Context, data adapter.PaymentData, cfg adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	return s.Authorize(ctx, data, cfg)
}

// ListClientSources lists the customer's stored cards.
func (s *StripeAdapter) ListClientSources(ctx context.Context, cfg adapter.GatewayConfig, customerID string) ([]adapter.CustomerSource, error) {
	client, err := s.client(cfg)
	if err != nil {
		return nil, err
	}
	methods, err := client.ListPaymentMethods(ctx, customerID, paymentMethodTypeCard)
	if err != nil {
		return nil, fmt.Errorf("stripe: list payment methods: %w", err)
	}

	sources := make([]adapter.CustomerSource, 0, len(methods))
	for _, m := range methods {
		src := adapter.CustomerSource{ID: m.ID, Gateway: GatewayName}
		if m.Card != nil {
			src.CreditCardInfo = adapter.CreditCardInfo{
				Last4:    m.Card.Last4,
				ExpYear:  m.Card.ExpYear,
				ExpMonth: m.Card.ExpMonth,
				Brand:    m.Card.Brand,
			}
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// ClientToken returns the publishable key for Stripe.js.
func (s *StripeAdapter) ClientToken(cfg adapter.GatewayConfig) (string, error) {
	key, err := cfg.Param(adapter.ParamPublicKey)
	if err != nil {
		return "", fmt.Errorf("stripe: %w", err)
	}
	return key, nil
}

func (s *StripeAdapter) errorResponse(kind adapter.TransactionKind, err error, data adapter.PaymentData, actionRequired bool) adapter.GatewayResponse {
	resp := adapter.GatewayResponse{
		IsSuccess:      false,
		ActionRequired: actionRequired,
		TransactionID:  data.Token,
		Amount:         data.Amount,
		Currency:       data.Currency,
		Kind:           kind,
		CustomerID:     data.CustomerID,
		Error:          err.Error(),
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		resp.Error = pe.Message
		resp.RawResponse = pe.Body
	}
	s.log.Warn("stripe operation failed",
		zap.String("kind", kind.String()),
		zap.String("token", data.Token),
		zap.Error(err),
	)
	return resp
}

func successResponse(intent *Intent, kind adapter.TransactionKind, success bool) adapter.GatewayResponse {
	currency := adapter.NormalizeCurrency(intent.Currency)
	return adapter.GatewayResponse{
		IsSuccess:      success,
		ActionRequired: intent.Status == StatusRequiresAction,
		TransactionID:  intent.ID,
		Amount:         adapter.FromProviderUnits(intent.Amount, currency),
		Currency:       currency,
		Kind:           kind,
		RawResponse:    intent.Raw,
	}
}

func fillCardDetails(intent *Intent, resp *adapter.GatewayResponse) {
	if intent.LatestCharge == nil || intent.LatestCharge.Card == nil {
		return
	}
	card := intent.LatestCharge.Card
	resp.CardInfo = &adapter.CreditCardInfo{
		Last4:    card.Last4,
		ExpYear:  card.ExpYear,
		ExpMonth: card.ExpMonth,
		Brand:    card.Brand,
	}
}

var _ adapter.Adapter = (*StripeAdapter)(nil)
