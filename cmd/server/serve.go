package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/config"
	"github.com/yourorg/payment-gateway/internal/logging"
	"github.com/yourorg/payment-gateway/internal/storage"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "migrate the schema before serving")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{
		ServiceName: cfg.ServiceName,
		Env:         cfg.Env,
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		AddCaller:   cfg.Logging.AddCaller,
	})
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := buildApp(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	shutdownCtx := context.WithoutCancel(ctx)
	defer a.Close(shutdownCtx)

	if autoMigrate {
		if err := storage.Migrate(a.db); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := a.httpServer()
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(shutdownCtx, cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}
	log.Info("server stopped")
	return nil
}
