package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v76"
	stripeclient "github.com/stripe/stripe-go/v76/client"
)

const maxIdempotencyKeyLen = 255

// sdkClient implements Client on top of stripe-go. Each instance owns its
// own API handle, so no global stripe.Key is ever set.
type sdkClient struct {
	api *stripeclient.API
}

// NewSDKClient creates a Client for apiKey. A nil backends uses the
// library's default HTTP backends.
func NewSDKClient(apiKey string, backends *stripego.Backends) Client {
	return &sdkClient{api: stripeclient.New(apiKey, backends)}
}

// SDKClientFactory returns a ClientFactory producing stripe-go clients.
func SDKClientFactory(backends *stripego.Backends) ClientFactory {
	return func(apiKey string) Client {
		return NewSDKClient(apiKey, backends)
	}
}

// generateIdempotencyKey creates a unique key for a mutating Stripe request.
func generateIdempotencyKey(operation string) string {
	key := fmt.Sprintf("%s-%s", operation, uuid.NewString())
	if len(key) > maxIdempotencyKeyLen {
		return key[:maxIdempotencyKeyLen]
	}
	return key
}

// detach keeps request-scoped values but drops cancellation: once a call
// is issued the adapter waits for the processor's answer.
func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

func (c *sdkClient) CreatePaymentIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	params := &stripego.PaymentIntentParams{
		PaymentMethod:      stripego.String(p.PaymentMethod),
		Amount:             stripego.Int64(p.Amount),
		Currency:           stripego.String(p.Currency),
		PaymentMethodTypes: stripego.StringSlice([]string{paymentMethodTypeCard}),
		ConfirmationMethod: stripego.String(confirmationManual),
		Confirm:            stripego.Bool(true),
		CaptureMethod:      stripego.String(p.CaptureMethod),
		SetupFutureUsage:   stripego.String(p.SetupFutureUsage),
	}
	if p.Customer != "" {
		params.Customer = stripego.String(p.Customer)
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripego.String(p.ReceiptEmail)
	}
	if p.Shipping != nil {
		params.Shipping = &stripego.ShippingDetailsParams{
			Name:  stripego.String(p.Shipping.FullName()),
			Phone: stripego.String(p.Shipping.Phone),
			Address: &stripego.AddressParams{
				Line1:      stripego.String(p.Shipping.StreetAddress1),
				Line2:      stripego.String(p.Shipping.StreetAddress2),
				City:       stripego.String(p.Shipping.City),
				State:      stripego.String(p.Shipping.CountryArea),
				PostalCode: stripego.String(p.Shipping.PostalCode),
				Country:    stripego.String(p.Shipping.Country),
			},
		}
	}
	params.Context = detach(ctx)
	params.SetIdempotencyKey(generateIdempotencyKey("pi-create"))
	params.AddExpand("latest_charge")

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, toProviderError(err)
	}
	return intentFromSDK(pi), nil
}

func (c *sdkClient) RetrievePaymentIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripego.PaymentIntentParams{}
	params.Context = detach(ctx)
	params.AddExpand("latest_charge")

	pi, err := c.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, toProviderError(err)
	}
	return intentFromSDK(pi), nil
}

func (c *sdkClient) CapturePaymentIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripego.PaymentIntentCaptureParams{}
	params.Context = detach(ctx)
	params.SetIdempotencyKey(generateIdempotencyKey("pi-capture"))
	params.AddExpand("latest_charge")

	pi, err := c.api.PaymentIntents.Capture(id, params)
	if err != nil {
		return nil, toProviderError(err)
	}
	return intentFromSDK(pi), nil
}

func (c *sdkClient) ConfirmPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripego.PaymentIntentConfirmParams{}
	params.Context = detach(ctx)
	params.SetIdempotencyKey(generateIdempotencyKey("pi-confirm"))
	params.AddExpand("latest_charge")

	pi, err := c.api.PaymentIntents.Confirm(id, params)
	if err != nil {
		return nil, toProviderError(err)
	}
	return intentFromSDK(pi), nil
}

func (c *sdkClient) RefundCharge(ctx context.Context, chargeID string, amount *int64) (*Refund, error) {
	params := &stripego.RefundParams{Charge: stripego.String(chargeID)}
	if amount != nil {
		params.Amount = stripego.Int64(*amount)
	}
	params.Context = detach(ctx)
	params.SetIdempotencyKey(generateIdempotencyKey("refund"))

	r, err := c.api.Refunds.New(params)
	if err != nil {
		return nil, toProviderError(err)
	}
	out := &Refund{
		ID:       r.ID,
		Status:   string(r.Status),
		Amount:   r.Amount,
		Currency: string(r.Currency),
	}
	if r.LastResponse != nil {
		out.Raw = json.RawMessage(r.LastResponse.RawJSON)
	}
	return out, nil
}

func (c *sdkClient) CreateCustomer(ctx context.Context, paymentMethodID string) (*Customer, error) {
	params := &stripego.CustomerParams{PaymentMethod: stripego.String(paymentMethodID)}
	params.Context = detach(ctx)
	params.SetIdempotencyKey(generateIdempotencyKey("customer"))

	cust, err := c.api.Customers.New(params)
	if err != nil {
		return nil, toProviderError(err)
	}
	return &Customer{ID: cust.ID}, nil
}

func (c *sdkClient) ListPaymentMethods(ctx context.Context, customerID, methodType string) ([]PaymentMethod, error) {
	params := &stripego.PaymentMethodListParams{
		Customer: stripego.String(customerID),
		Type:     stripego.String(methodType),
	}
	params.Context = detach(ctx)

	var methods []PaymentMethod
	it := c.api.PaymentMethods.List(params)
	for it.Next() {
		pm := it.PaymentMethod()
		method := PaymentMethod{ID: pm.ID}
		if pm.Card != nil {
			method.Card = &CardDetails{
				Last4:    pm.Card.Last4,
				Brand:    string(pm.Card.Brand),
				ExpMonth: pm.Card.ExpMonth,
				ExpYear:  pm.Card.ExpYear,
			}
		}
		methods = append(methods, method)
	}
	if err := it.Err(); err != nil {
		return nil, toProviderError(err)
	}
	return methods, nil
}

func intentFromSDK(pi *stripego.PaymentIntent) *Intent {
	out := &Intent{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
	}
	if pi.PaymentMethod != nil {
		out.PaymentMethodID = pi.PaymentMethod.ID
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	if ch := pi.LatestCharge; ch != nil {
		out.LatestCharge = &Charge{ID: ch.ID}
		if ch.PaymentMethodDetails != nil && ch.PaymentMethodDetails.Card != nil {
			card := ch.PaymentMethodDetails.Card
			out.LatestCharge.Card = &CardDetails{
				Last4:    card.Last4,
				Brand:    string(card.Brand),
				ExpMonth: card.ExpMonth,
				ExpYear:  card.ExpYear,
			}
		}
	}
	if pi.LastResponse != nil {
		out.Raw = json.RawMessage(pi.LastResponse.RawJSON)
	}
	return out
}

// toProviderError maps stripe-go failures, including transport errors,
// onto ProviderError.
func toProviderError(err error) error {
	var stripeErr *stripego.Error
	if !errors.As(err, &stripeErr) {
		return &ProviderError{
			Type:    "api_connection_error",
			Message: "Could not connect to the payment processor.",
			Err:     err,
		}
	}
	pe := &ProviderError{
		Type:        string(stripeErr.Type),
		Code:        string(stripeErr.Code),
		DeclineCode: string(stripeErr.DeclineCode),
		Message:     stripeErr.Msg,
		HTTPStatus:  stripeErr.HTTPStatusCode,
		Err:         err,
	}
	if stripeErr.LastResponse != nil && len(stripeErr.LastResponse.RawJSON) > 0 {
		pe.Body = json.RawMessage(stripeErr.LastResponse.RawJSON)
	} else if body, mErr := json.Marshal(map[string]*stripego.Error{"error": stripeErr}); mErr == nil {
		pe.Body = body
	}
	return pe
}
