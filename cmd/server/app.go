package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yourorg/payment-gateway/internal/adapter/dummy"
	"github.com/yourorg/payment-gateway/internal/adapter/stripe"
	"github.com/yourorg/payment-gateway/internal/api"
	"github.com/yourorg/payment-gateway/internal/config"
	"github.com/yourorg/payment-gateway/internal/content"
	contentpg "github.com/yourorg/payment-gateway/internal/content/postgres"
	"github.com/yourorg/payment-gateway/internal/monitor"
	"github.com/yourorg/payment-gateway/internal/policy"
	"github.com/yourorg/payment-gateway/internal/processor"
	"github.com/yourorg/payment-gateway/internal/reporting"
	"github.com/yourorg/payment-gateway/internal/storage"
	txpg "github.com/yourorg/payment-gateway/internal/transaction/postgres"
)

// Adapter types accepted in gateways.<name>.type.
const (
	gatewayTypeStripe = "stripe"
	gatewayTypeDummy  = "dummy"
)

type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *gorm.DB
	router   *gin.Engine
	registry *prometheus.Registry
	shutdown []func(context.Context) error
}

func buildGateways(gateways map[string]config.GatewayConfig, log *zap.Logger) (map[string]processor.Gateway, error) {
	out := make(map[string]processor.Gateway, len(gateways))
	for name, gw := range gateways {
		var g processor.Gateway
		switch gw.Type {
		case gatewayTypeStripe:
			g.Adapter = stripe.NewStripeAdapter(nil, log)
		case gatewayTypeDummy:
			g.Adapter = dummy.NewDummyAdapter(name)
		default:
			return nil, fmt.Errorf("gateway %q: unsupported type %q", name, gw.Type)
		}
		g.Config = gw.AdapterConfig()
		out[name] = g
	}
	return out, nil
}

func setupTracing(cfg *config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Env),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// buildApp wires every dependency from cfg. It does not migrate the schema.
// On failure anything already started is shut down again.
func buildApp(cfg *config.Config, log *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.Tracing.Enabled {
		tp, err := setupTracing(cfg)
		if err != nil {
			return nil, err
		}
		a.shutdown = append(a.shutdown, tp.Shutdown)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.shutdown = append(a.shutdown, func(context.Context) error { return storage.Close(db) })

	gateways, err := buildGateways(cfg.Gateways, log)
	if err != nil {
		return nil, err
	}
	enforcer, err := policy.NewPaymentPolicyEnforcer(cfg.CapturePolicy)
	if err != nil {
		return nil, fmt.Errorf("capture policy: %w", err)
	}
	mon, err := monitor.NewPaymentRequestMonitor()
	if err != nil {
		return nil, err
	}

	txRepo := txpg.NewTransactionRepository(db)
	proc := processor.NewProcessor(gateways,
		processor.WithPolicy(enforcer),
		processor.WithRepository(txRepo),
		processor.WithMetrics(processor.NewMetrics(a.registry)),
		processor.WithLogger(log.Named("processor")),
	)
	access := content.NewAccessService(
		contentpg.NewContentRepository(db),
		content.Settings{
			MaxDownloads: cfg.DigitalContent.MaxDownloads,
			URLValidDays: cfg.DigitalContent.URLValidDays,
		},
		log.Named("content"),
	)

	h := api.NewHandler(api.Deps{
		Processor:    proc,
		Monitor:      mon,
		Transactions: txRepo,
		Reporter:     reporting.NewRetrospectiveReporter(),
		Access:       access,
		ContentDir:   cfg.DigitalContent.StorageDir,
		Logger:       log.Named("api"),
	})
	a.router = api.NewRouter(cfg.ServiceName, h, a.registry, log.Named("http"))

	log.Info("application initialized",
		zap.Strings("gateways", proc.Gateways()),
		zap.Int("capture_policy_rules", enforcer.Rules()),
		zap.String("database_driver", cfg.Database.Driver),
		zap.Bool("tracing", cfg.Tracing.Enabled),
	)
	return a, nil
}

func (a *app) httpServer() *http.Server {
	return &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      a.router,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			a.log.Error("shutdown step failed", zap.Error(err))
		}
	}
}
