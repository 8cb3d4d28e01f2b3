// Package processor routes payment operations to the configured gateway
// adapter and records the outcome.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/policy"
	"github.com/yourorg/payment-gateway/internal/transaction"
)

var (
	ErrGatewayNotFound  = errors.New("gateway not found")
	ErrUnknownOperation = errors.New("unknown operation")
)

// Operation names a payment operation exposed by the processor.
type Operation string

const (
	OpAuthorize Operation = "authorize"
	OpCapture   Operation = "capture"
	OpConfirm   Operation = "confirm"
	OpRefund    Operation = "refund"
	OpVoid      Operation = "void"
	OpProcess   Operation = "process"
)

// ParseOperation validates an operation name.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OpAuthorize, OpCapture, OpConfirm, OpRefund, OpVoid, OpProcess:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

// Gateway pairs an adapter with the configuration it is called with.
type Gateway struct {
	Adapter adapter.Adapter
	Config  adapter.GatewayConfig
}

// Processor selects the adapter for a gateway, applies the capture policy,
// and records metrics, traces and transactions for every call.
type Processor struct {
	gateways map[string]Gateway
	policy   *policy.PaymentPolicyEnforcer
	repo     transaction.Repository
	metrics  *Metrics
	tracer   trace.Tracer
	log      *zap.Logger
}

type Option func(*Processor)

func WithPolicy(p *policy.PaymentPolicyEnforcer) Option {
	return func(proc *Processor) { proc.policy = p }
}

// WithRepository persists every gateway response.
func WithRepository(r transaction.Repository) Option {
	return func(proc *Processor) { proc.repo = r }
}

func WithMetrics(m *Metrics) Option {
	return func(proc *Processor) { proc.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(proc *Processor) { proc.tracer = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(proc *Processor) { proc.log = l }
}

// NewProcessor creates a Processor over the given gateway registry.
func NewProcessor(gateways map[string]Gateway, opts ...Option) *Processor {
	if gateways == nil {
		panic("gateway registry cannot be nil")
	}
	p := &Processor{
		gateways: gateways,
		tracer:   otel.Tracer("processor"),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Gateways returns the registered gateway names in sorted order.
func (p *Processor) Gateways() []string {
	names := make([]string, 0, len(p.gateways))
	for name := range p.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Processor) gateway(name string) (Gateway, error) {
	gw, ok := p.gateways[name]
	if !ok {
		return Gateway{}, fmt.Errorf("%w: %s", ErrGatewayNotFound, name)
	}
	return gw, nil
}

// Execute runs op on the named gateway. Provider declines come back as a
// GatewayResponse with IsSuccess=false and a nil error. When the response
// cannot be persisted, it is returned together with the error.
func (p *Processor) Execute(ctx context.Context, gatewayName string, op Operation, data adapter.PaymentData) (adapter.GatewayResponse, error) {
	ctx, span := p.tracer.Start(ctx, "Processor.Execute", trace.WithAttributes(
		attribute.String("gateway", gatewayName),
		attribute.String("operation", string(op)),
	))
	defer span.End()

	resp, err := p.execute(ctx, gatewayName, op, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}
	span.SetAttributes(
		attribute.String("kind", resp.Kind.String()),
		attribute.Bool("is_success", resp.IsSuccess),
		attribute.Bool("action_required", resp.ActionRequired),
	)
	return resp, nil
}

func (p *Processor) execute(ctx context.Context, gatewayName string, op Operation, data adapter.PaymentData) (adapter.GatewayResponse, error) {
	if _, err := ParseOperation(string(op)); err != nil {
		return adapter.GatewayResponse{}, err
	}
	gw, err := p.gateway(gatewayName)
	if err != nil {
		return adapter.GatewayResponse{}, err
	}

	cfg := gw.Config
	if op == OpAuthorize || op == OpProcess {
		decision, err := p.policy.Evaluate(gatewayName, data, cfg)
		if err != nil {
			return adapter.GatewayResponse{}, fmt.Errorf("processor: capture policy: %w", err)
		}
		if decision.RuleID != "" {
			p.log.Debug("capture policy rule matched",
				zap.String("gateway", gatewayName),
				zap.String("rule_id", decision.RuleID),
				zap.Bool("auto_capture", decision.AutoCapture),
			)
		}
		cfg.AutoCapture = decision.AutoCapture
	}

	start := time.Now()
	resp, err := p.call(ctx, gw.Adapter, op, data, cfg)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		p.metrics.observe(gatewayName, op, "", OutcomeError, elapsed)
		p.log.Error("gateway operation rejected",
			zap.String("gateway", gatewayName),
			zap.String("operation", string(op)),
			zap.Error(err),
		)
		return adapter.GatewayResponse{}, fmt.Errorf("processor: %s %s: %w", gatewayName, op, err)
	}
	p.metrics.observe(gatewayName, op, resp.Kind.String(), outcome(resp), elapsed)
	p.log.Info("gateway operation completed",
		zap.String("gateway", gatewayName),
		zap.String("operation", string(op)),
		zap.String("kind", resp.Kind.String()),
		zap.String("transaction_id", resp.TransactionID),
		zap.Bool("is_success", resp.IsSuccess),
		zap.Bool("action_required", resp.ActionRequired),
		zap.Duration("latency", time.Duration(elapsed*float64(time.Second))),
	)

	if p.repo != nil {
		tx := transaction.FromResponse(gatewayName, string(op), data.Token, resp)
		if err := p.repo.Create(ctx, tx); err != nil {
			return resp, fmt.Errorf("processor: persist transaction: %w", err)
		}
	}
	return resp, nil
}

func (p *Processor) call(ctx context.Context, a adapter.Adapter, op Operation, data adapter.PaymentData, cfg adapter.GatewayConfig) (adapter.GatewayResponse, error) {
	switch op {
	case OpAuthorize:
		return a.Authorize(ctx, data, cfg)
	case OpCapture:
		return a.Capture(ctx, data, cfg)
	case OpConfirm:
		return a.Confirm(ctx, data, cfg)
	case OpRefund:
		return a.Refund(ctx, data, cfg)
	case OpVoid:
		return a.Void(ctx, data, cfg)
	case OpProcess:
		return a.ProcessPayment(ctx, data, cfg)
	}
	return adapter.GatewayResponse{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
}

func outcome(resp adapter.GatewayResponse) string {
	switch {
	case resp.ActionRequired:
		return OutcomeActionRequired
	case resp.IsSuccess:
		return OutcomeSuccess
	default:
		return OutcomeFailure
	}
}

// ListClientSources lists the stored cards of a customer on the named gateway.
func (p *Processor) ListClientSources(ctx context.Context, gatewayName, customerID string) ([]adapter.CustomerSource, error) {
	gw, err := p.gateway(gatewayName)
	if err != nil {
		return nil, err
	}
	return gw.Adapter.ListClientSources(ctx, gw.Config, customerID)
}

// ClientToken returns the storefront token for the named gateway.
func (p *Processor) ClientToken(gatewayName string) (string, error) {
	gw, err := p.gateway(gatewayName)
	if err != nil {
		return "", err
	}
	return gw.Adapter.ClientToken(gw.Config)
}
