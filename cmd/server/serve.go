package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tripmates/accord/internal/auth"
	"github.com/tripmates/accord/internal/classify"
	"github.com/tripmates/accord/internal/config"
	"github.com/tripmates/accord/internal/gate"
	"github.com/tripmates/accord/internal/middleware"
	"github.com/tripmates/accord/internal/pivot"
	"github.com/tripmates/accord/internal/service"
	"github.com/tripmates/accord/internal/storage/sqlite"
	"github.com/tripmates/accord/internal/trust"
	"github.com/tripmates/accord/pkg/api"
	"github.com/tripmates/accord/pkg/logging"
)

// tokenDuration only applies to locally minted tokens; production tokens
// carry whatever expiry the account service set.
const tokenDuration = 24 * time.Hour

func serveRun(cfg *config.Config) {
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	slog.Info("starting "+programName, "version", version)

	if cfg.JwtSecret == "" {
		slog.Error("jwtSecret must be configured, tokens cannot be verified without it")
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DatabasePath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	classifier, err := classify.NewHTTPClassifier(classify.HTTPConfig{
		BaseURL: cfg.ClassifierURL,
		Timeout: cfg.ClassifierTimeoutDuration(),
	})
	if err != nil {
		slog.Error("Failed to build classifier client", "error", err)
		os.Exit(1)
	}

	promptGate, err := gate.New(gate.Config{
		Classifier:   classifier,
		Audit:        store,
		PromRegistry: registry,
	})
	if err != nil {
		slog.Error("Failed to build prompt gate", "error", err)
		os.Exit(1)
	}

	pivots, err := pivot.NewManager(pivot.Config{
		Store:          store,
		Signals:        store,
		Logger:         slog.Default(),
		PromRegistry:   registry,
		ResponseWindow: cfg.PivotWindowDuration(),
		SweepInterval:  cfg.SweepIntervalDuration(),
	})
	if err != nil {
		slog.Error("Failed to build pivot manager", "error", err)
		os.Exit(1)
	}

	router, err := trust.NewRouter(trust.Config{Effects: store, PromRegistry: registry})
	if err != nil {
		slog.Error("Failed to build trust router", "error", err)
		os.Exit(1)
	}

	jwtManager := auth.NewJWTManager(cfg.JwtSecret, tokenDuration)
	interceptors := connect.WithInterceptors(
		middleware.RequireMember(jwtManager),
		middleware.NewLoggingInterceptor(registry),
	)

	mux := http.NewServeMux()

	tripPath, tripHandler := api.NewTripServiceHandler(
		service.NewTripService(store), interceptors)
	mux.Handle(tripPath, tripHandler)

	consensusPath, consensusHandler := api.NewConsensusServiceHandler(
		service.NewConsensusService(store, cfg.VoteThreshold, registry), interceptors)
	mux.Handle(consensusPath, consensusHandler)

	pivotPath, pivotHandler := api.NewPivotServiceHandler(
		service.NewPivotService(store, promptGate, pivots), interceptors)
	mux.Handle(pivotPath, pivotHandler)

	trustPath, trustHandler := api.NewTrustServiceHandler(
		service.NewTrustService(store, promptGate, router), interceptors)
	mux.Handle(trustPath, trustHandler)

	mux.Handle(grpchealth.NewHandler(
		grpchealth.NewStaticChecker(
			api.TripServiceName,
			api.ConsensusServiceName,
			api.PivotServiceName,
			api.TrustServiceName,
		),
	))

	pivots.Start()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.MetricsBindAddr, cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 60 * time.Second,
	}
	go func() {
		slog.Info("Metrics listener starting", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics listener failed", "error", err)
			os.Exit(1)
		}
	}()

	// h2c allows gRPC clients to connect without TLS.
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port),
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	signalCtx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	select {
	case <-signalCtx.Done():
		slog.Info("Signal received, initiating graceful shutdown")
	case err := <-errChan:
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.ShutdownTimeoutDuration(),
	)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Metrics server shutdown error", "error", err)
	}
	pivots.Stop()
	slog.Info("Shutdown complete")
}
