package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	handlers "github.com/dylan-murrayy/Rabbit-Demo/payments/internal/handler"
	"github.com/dylan-murrayy/Rabbit-Demo/payments/internal/services"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/config"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/logging"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/messaging"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/metrics"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/server"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/shutdown"
)

func main() {
	cfg := config.Load("payment-service")
	logger := logging.New(cfg.ServiceName, cfg.LogLevel)
	logger.WithField("mode", cfg.Mode).Info("Starting Payment Service")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry, "payments")

	paymentService := services.NewPaymentService(cfg.PaymentLatency, logger)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	factory := messaging.NewFactory(cfg.RabbitMQURL)
	mqConn := messaging.NewConnection(factory.PaymentsConnectionConfig(), logger)
	queueManager := messaging.NewQueueManager(mqConn, logger)
	defer queueManager.Close()

	// the listener only exists in ASYNC mode and retries the broker forever
	if cfg.Mode == config.ModeAsync {
		orderConsumer := handlers.NewOrderConsumerHandler(
			queueManager,
			factory,
			paymentService,
			logger,
			m,
			cfg.ReconnectDelay,
		)
		orderConsumer.RegisterConsumer()
		queueManager.StartAllConsumers(ctx)
		logger.Info("Attempting to connect to RabbitMQ...")
	}

	e := server.New(logger, registry)
	handlers.NewHandler(cfg.ServiceName, cfg.Mode, paymentService, m).RegisterRoutes(e)

	if err := server.Run(ctx, e, cfg.ServerPort, logger); err != nil {
		logger.WithError(err).Error("HTTP server stopped")
		cancel()
		queueManager.Close()
		os.Exit(1)
	}

	cancel()
	logger.Info("Server stopped gracefully")
}
