package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ateli/materialflow/internal/api"
	"github.com/ateli/materialflow/internal/engine"
	"github.com/ateli/materialflow/internal/messaging"
	"github.com/ateli/materialflow/internal/recordstore"
	"github.com/ateli/materialflow/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	recordStoreURL := os.Getenv("RECORDSTORE_URL")
	if recordStoreURL == "" {
		logger.Error("RECORDSTORE_URL environment variable is required")
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	records := recordstore.NewClient(recordStoreURL, httpClient)

	pollInterval := engine.DefaultPollInterval
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logger.Error("invalid POLL_INTERVAL", "error", err, "value", v)
			os.Exit(1)
		}
		pollInterval = d
	}

	var statusProducer, paymentProducer api.Publisher
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")

		sp := messaging.NewProducer(brokers, messaging.TopicStatusChanged)
		defer func() { _ = sp.Close() }()
		statusProducer = sp

		pp := messaging.NewProducer(brokers, messaging.TopicPaymentCompleted)
		defer func() { _ = pp.Close() }()
		paymentProducer = pp
	}

	stores := api.NewManager(ctx, records, logger, pollInterval)
	handler := api.NewHandler(stores, statusProducer, paymentProducer, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /projects/{projectId}/orders", telemetry.WithHTTPRoute(handler.HandleCreate))
	mux.HandleFunc("GET /projects/{projectId}/orders", telemetry.WithHTTPRoute(handler.HandleList))
	mux.HandleFunc("GET /projects/{projectId}/orders/{id}", telemetry.WithHTTPRoute(handler.HandleGet))
	mux.HandleFunc("POST /projects/{projectId}/orders/{id}/approve", telemetry.WithHTTPRoute(handler.HandleApprove))
	mux.HandleFunc("POST /projects/{projectId}/orders/{id}/reject", telemetry.WithHTTPRoute(handler.HandleReject))
	mux.HandleFunc("POST /projects/{projectId}/orders/{id}/items/{itemId}/confirm", telemetry.WithHTTPRoute(handler.HandleConfirmItem))
	mux.HandleFunc("POST /projects/{projectId}/orders/{id}/payment", telemetry.WithHTTPRoute(handler.HandleRecordPayment))
	mux.HandleFunc("POST /projects/{projectId}/orders/{id}/acknowledge", telemetry.WithHTTPRoute(handler.HandleAcknowledge))
	mux.HandleFunc("POST /projects/{projectId}/orders/{id}/loading", telemetry.WithHTTPRoute(handler.HandleStartLoading))
	mux.HandleFunc("POST /projects/{projectId}/orders/{id}/dispatch", telemetry.WithHTTPRoute(handler.HandleDispatch))
	mux.HandleFunc("POST /projects/{projectId}/orders/{id}/delivered", telemetry.WithHTTPRoute(handler.HandleMarkDelivered))
	mux.HandleFunc("POST /projects/{projectId}/orders/{id}/cancel", telemetry.WithHTTPRoute(handler.HandleCancel))
	mux.HandleFunc("POST /projects/{projectId}/orders/{id}/hold", telemetry.WithHTTPRoute(handler.HandleHold))
	mux.HandleFunc("POST /projects/{projectId}/orders/{id}/resume", telemetry.WithHTTPRoute(handler.HandleResume))
	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "orders",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting orders service", "port", port, "poll_interval", pollInterval.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
