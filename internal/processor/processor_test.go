package processor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/adapter/dummy"
	"github.com/yourorg/payment-gateway/internal/policy"
	"github.com/yourorg/payment-gateway/internal/processor"
	"github.com/yourorg/payment-gateway/internal/transaction"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(_ context.Context, t *transaction.Transaction) error {
	return m.Called(t).Error(0)
}

func (m *mockRepo) ListByToken(_ context.Context, token string) ([]transaction.Transaction, error) {
	args := m.Called(token)
	txs, _ := args.Get(0).([]transaction.Transaction)
	return txs, args.Error(1)
}

func (m *mockRepo) ListBetween(_ context.Context, from, to time.Time) ([]transaction.Transaction, error) {
	args := m.Called(from, to)
	txs, _ := args.Get(0).([]transaction.Transaction)
	return txs, args.Error(1)
}

type fixture struct {
	proc     *processor.Processor
	repo     *mockRepo
	registry *prometheus.Registry
	metrics  *processor.Metrics
	spans    *tracetest.SpanRecorder
	gateway  *dummy.DummyAdapter
}

func newFixture(t *testing.T, rules []policy.PolicyRule, autoCapture bool) *fixture {
	t.Helper()
	f := &fixture{
		repo:     new(mockRepo),
		registry: prometheus.NewRegistry(),
		spans:    tracetest.NewSpanRecorder(),
		gateway:  dummy.NewDummyAdapter(""),
	}
	f.metrics = processor.NewMetrics(f.registry)
	enforcer, err := policy.NewPaymentPolicyEnforcer(rules)
	require.NoError(t, err)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(f.spans))

	f.proc = processor.NewProcessor(map[string]processor.Gateway{
		"dummy": {Adapter: f.gateway, Config: adapter.GatewayConfig{AutoCapture: autoCapture}},
	},
		processor.WithPolicy(enforcer),
		processor.WithRepository(f.repo),
		processor.WithMetrics(f.metrics),
		processor.WithTracer(tp.Tracer("test")),
	)
	return f
}

func payment(token string) adapter.PaymentData {
	return adapter.PaymentData{Amount: decimal.RequireFromString("25.00"), Currency: "usd", Token: token}
}

func histogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total uint64
	for _, mf := range families {
		if mf.GetName() != name || mf.GetType() != dto.MetricType_HISTOGRAM {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetHistogram().GetSampleCount()
		}
	}
	return total
}

func TestNewProcessor_NilRegistryPanics(t *testing.T) {
	assert.Panics(t, func() { processor.NewProcessor(nil) })
}

func TestParseOperation(t *testing.T) {
	op, err := processor.ParseOperation("refund")
	require.NoError(t, err)
	assert.Equal(t, processor.OpRefund, op)

	_, err = processor.ParseOperation("settle")
	assert.ErrorIs(t, err, processor.ErrUnknownOperation)
}

func TestProcessor_Execute_PersistsAndRecords(t *testing.T) {
	f := newFixture(t, nil, true)
	f.repo.On("Create", mock.MatchedBy(func(tx *transaction.Transaction) bool {
		return tx.Gateway == "dummy" && tx.Operation == "authorize" && tx.Token == "tok_ok" &&
			tx.Kind == adapter.KindCapture && tx.IsSuccess && tx.Currency == "USD"
	})).Return(nil).Once()

	resp, err := f.proc.Execute(context.Background(), "dummy", processor.OpAuthorize, payment("tok_ok"))
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess)
	assert.Equal(t, adapter.KindCapture, resp.Kind)
	f.repo.AssertExpectations(t)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OperationsTotal.WithLabelValues("dummy", "capture", processor.OutcomeSuccess)))
	assert.Equal(t, uint64(1), histogramCount(t, f.registry, "gateway_operation_duration_seconds"))

	spans := f.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "Processor.Execute", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("gateway", "dummy"))
	assert.Contains(t, spans[0].Attributes(), attribute.Bool("is_success", true))
}

func TestProcessor_Execute_DeclineIsNotAnError(t *testing.T) {
	f := newFixture(t, nil, false)
	f.repo.On("Create", mock.Anything).Return(nil).Once()

	resp, err := f.proc.Execute(context.Background(), "dummy", processor.OpCapture, payment(dummy.TokenDeclined))
	require.NoError(t, err)
	assert.False(t, resp.IsSuccess)
	assert.Equal(t, "Card declined", resp.Error)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OperationsTotal.WithLabelValues("dummy", "capture", processor.OutcomeFailure)))
}

func TestProcessor_Execute_ActionRequiredOutcome(t *testing.T) {
	f := newFixture(t, nil, false)
	f.repo.On("Create", mock.Anything).Return(nil).Once()

	resp, err := f.proc.Execute(context.Background(), "dummy", processor.OpConfirm, payment(dummy.TokenRequiresAction))
	require.NoError(t, err)
	assert.True(t, resp.ActionRequired)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OperationsTotal.WithLabelValues("dummy", "confirm", processor.OutcomeActionRequired)))
}

func TestProcessor_Execute_CapturePolicyOverridesConfig(t *testing.T) {
	rules := []policy.PolicyRule{{ID: "large_hold", Expression: "amount >= 20", AutoCapture: false}}
	f := newFixture(t, rules, true)
	f.repo.On("Create", mock.Anything).Return(nil)

	resp, err := f.proc.Execute(context.Background(), "dummy", processor.OpProcess, payment("tok"))
	require.NoError(t, err)
	assert.Equal(t, adapter.KindAuth, resp.Kind, "rule turns auto capture off")

	small := payment("tok")
	small.Amount = decimal.RequireFromString("5")
	resp, err = f.proc.Execute(context.Background(), "dummy", processor.OpAuthorize, small)
	require.NoError(t, err)
	assert.Equal(t, adapter.KindCapture, resp.Kind, "gateway default applies")

	// Policy never applies to follow-up operations.
	resp, err = f.proc.Execute(context.Background(), "dummy", processor.OpRefund, payment("tok"))
	require.NoError(t, err)
	assert.Equal(t, adapter.KindRefund, resp.Kind)
}

func TestProcessor_Execute_UnknownGatewayAndOperation(t *testing.T) {
	f := newFixture(t, nil, false)

	_, err := f.proc.Execute(context.Background(), "paypal", processor.OpAuthorize, payment("tok"))
	assert.ErrorIs(t, err, processor.ErrGatewayNotFound)

	_, err = f.proc.Execute(context.Background(), "dummy", processor.Operation("settle"), payment("tok"))
	assert.ErrorIs(t, err, processor.ErrUnknownOperation)

	f.repo.AssertNotCalled(t, "Create", mock.Anything)
	spans := f.spans.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestProcessor_Execute_ContractError(t *testing.T) {
	f := newFixture(t, nil, false)

	_, err := f.proc.Execute(context.Background(), "dummy", processor.OpCapture, payment(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrInvalidPaymentData)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OperationsTotal.WithLabelValues("dummy", "none", processor.OutcomeError)))
	f.repo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestProcessor_Execute_PersistFailureReturnsResponse(t *testing.T) {
	f := newFixture(t, nil, false)
	f.repo.On("Create", mock.Anything).Return(errors.New("disk full")).Once()

	resp, err := f.proc.Execute(context.Background(), "dummy", processor.OpVoid, payment("tok"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist transaction")
	assert.True(t, resp.IsSuccess)
	assert.Equal(t, adapter.KindVoid, resp.Kind)
}

func TestProcessor_PassThroughs(t *testing.T) {
	f := newFixture(t, nil, false)
	f.gateway.Sources["cus_1"] = []adapter.CustomerSource{{ID: "src_1", Gateway: "dummy"}}

	sources, err := f.proc.ListClientSources(context.Background(), "dummy", "cus_1")
	require.NoError(t, err)
	assert.Len(t, sources, 1)

	_, err = f.proc.ListClientSources(context.Background(), "nope", "cus_1")
	assert.ErrorIs(t, err, processor.ErrGatewayNotFound)

	token, err := f.proc.ClientToken("dummy")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.Equal(t, []string{"dummy"}, f.proc.Gateways())
}
