package stripe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yourorg/payment-gateway/internal/adapter"
)

// Payment intent and refund statuses reported by Stripe.
const (
	StatusSucceeded        = "succeeded"
	StatusRequiresCapture  = "requires_capture"
	StatusRequiresAction   = "requires_action"
	StatusRequiresMethod   = "requires_payment_method"
	StatusRefundSucceeded  = "succeeded"
	captureMethodAutomatic = "automatic"
	captureMethodManual    = "manual"
	confirmationManual     = "manual"
	futureUsageOffSession  = "off_session"
	futureUsageOnSession   = "on_session"
	paymentMethodTypeCard  = "card"
)

// IntentParams describes a payment intent to create and confirm.
type IntentParams struct {
	PaymentMethod    string
	Amount           int64
	Currency         string
	CaptureMethod    string
	SetupFutureUsage string
	Customer         string
	ReceiptEmail     string
	Shipping         *adapter.Address
}

// CardDetails is the card projection found on charges and payment methods.
type CardDetails struct {
	Last4    string
	Brand    string
	ExpMonth int64
	ExpYear  int64
}

// Charge is the charge attached to a payment intent.
type Charge struct {
	ID   string
	Card *CardDetails
}

// Intent is a payment intent as seen by the adapter.
type Intent struct {
	ID              string
	Status          string
	Amount          int64
	Currency        string
	PaymentMethodID string
	CustomerID      string
	LatestCharge    *Charge
	Raw             json.RawMessage
}

// Refund is the outcome of refunding a charge.
type Refund struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
	Raw      json.RawMessage
}

// Customer is a customer record created on the processor.
type Customer struct {
	ID string
}

// PaymentMethod is a stored payment method.
type PaymentMethod struct {
	ID   string
	Card *CardDetails
}

// ProviderError is a fault reported by (or while reaching) the processor.
type ProviderError struct {
	Type        string
	Code        string
	DeclineCode string
	Message     string
	HTTPStatus  int
	Body        json.RawMessage
	Err         error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("stripe: %s: %s", e.Type, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Client is the subset of the Stripe API used by the adapter.
// Implementations return *ProviderError for provider faults.
type Client interface {
	CreatePaymentIntent(ctx context.Context, params IntentParams) (*Intent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*Intent, error)
	CapturePaymentIntent(ctx context.Context, id string) (*Intent, error)
	ConfirmPaymentIntent(ctx context.Context, id string) (*Intent, error)
	// RefundCharge refunds amount minor units, or the full charge when amount is nil.
	RefundCharge(ctx context.Context, chargeID string, amount *int64) (*Refund, error)
	CreateCustomer(ctx context.Context, paymentMethodID string) (*Customer, error)
	ListPaymentMethods(ctx context.Context, customerID, methodType string) ([]PaymentMethod, error)
}

// ClientFactory builds a Client authenticated with apiKey.
type ClientFactory func(apiKey string) Client
