package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/kuhhandel-server/internal/config"
	"github.com/DoyleJ11/kuhhandel-server/internal/game"
	"github.com/DoyleJ11/kuhhandel-server/internal/httpapi"
	"github.com/DoyleJ11/kuhhandel-server/internal/hub"
	"github.com/DoyleJ11/kuhhandel-server/internal/logging"
	"github.com/DoyleJ11/kuhhandel-server/internal/results"
	"github.com/DoyleJ11/kuhhandel-server/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "kuhhandel-server", cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	var opts []game.Option
	if cfg.DatabaseURL != "" {
		store, err := results.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		opts = append(opts, game.WithRecorder(store))
		logger.Info("results archive enabled")
	}

	h := hub.NewHub(ctx, game.Config{
		Players:       cfg.Players,
		AuctionWindow: cfg.AuctionWindow,
		BuyOutWindow:  cfg.BuyOutWindow,
	}, logger, opts...)

	// Build the router *with* the hub injected
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(h, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Int("players", cfg.Players))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
