package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tenantgate/tenantgate/pkg/config"
	"github.com/tenantgate/tenantgate/pkg/gateway"
	"github.com/tenantgate/tenantgate/pkg/observability"
)

func main() {
	startup := logrus.New()
	startup.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		startup.WithError(err).Fatal("Failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	otelProviders, err := observability.InitOTel(context.Background(), observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		startup.WithError(err).Fatal("Failed to initialize OpenTelemetry")
	}

	gw, err := gateway.New(cfg, logger, metrics)
	if err != nil {
		startup.WithError(err).Fatal("Failed to initialize gateway")
	}

	var policyWatcher *config.PolicyWatcher
	if cfg.PolicyFile != "" {
		policyWatcher, err = config.WatchPolicy(cfg.PolicyFile, logger, gw.ApplyPolicy)
		if err != nil {
			startup.WithError(err).Fatal("Failed to watch policy file")
		}
		startup.WithField("policy", cfg.PolicyFile).Info("Watching access policy for changes")
	}

	scheduler := cron.New()
	if cfg.Tenant.RefreshSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.Tenant.RefreshSchedule, gw.RefreshDirectory); err != nil {
			startup.WithError(err).Fatal("Invalid tenant refresh schedule")
		}
		scheduler.Start()
		startup.WithField("schedule", cfg.Tenant.RefreshSchedule).Info("Tenant directory refresh scheduled")
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      gw.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux(gw, metrics),
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, server, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		return nil
	})
	if policyWatcher != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return policyWatcher.Close()
		})
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return gw.Close()
	})
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	go func() {
		startup.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			startup.WithError(err).Fatal("Health server failed")
		}
	}()

	go func() {
		startup.WithFields(logrus.Fields{
			"addr":    server.Addr,
			"backend": cfg.Backend.BaseURL,
			"store":   cfg.Store.Type,
		}).Info("Gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			startup.WithError(err).Fatal("Gateway server failed")
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		startup.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
	startup.Info("Gateway stopped")
}

// healthMux serves the probe and metrics endpoints on the admin port.
func healthMux(gw *gateway.Gateway, metrics *observability.Metrics) http.Handler {
	checker := gw.HealthChecker()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(checker.Check(ctx))
	})
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}
	return mux
}
