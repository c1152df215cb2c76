package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	handlers "github.com/dylan-murrayy/Rabbit-Demo/checkout/internal/handlers"
	"github.com/dylan-murrayy/Rabbit-Demo/checkout/internal/service"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/config"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/logging"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/messaging"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/metrics"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/server"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/shutdown"
)

func main() {
	cfg := config.Load("checkout-service")
	logger := logging.New(cfg.ServiceName, cfg.LogLevel)
	logger.WithField("mode", cfg.Mode).Info("Starting Checkout Service")

	if cfg.Mode != config.ModeSync && cfg.Mode != config.ModeAsync {
		logger.WithField("mode", cfg.Mode).Warn("Unknown MODE, every checkout will fail")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry, "checkout")

	// broker connection is dialed on first async checkout, not here
	factory := messaging.NewFactory(cfg.RabbitMQURL)
	mqConn := messaging.NewConnection(factory.CheckoutConnectionConfig(), logger)
	queueManager := messaging.NewQueueManager(mqConn, logger)
	defer queueManager.Close()

	orderCreatedPub := queueManager.GetOrCreatePublisher("order_created", factory.OrderCreatedPublisher())

	dispatcher := service.NewDispatcher(
		cfg.Mode,
		service.NewPaymentClient(cfg.PaymentServiceURL, cfg.SyncTimeout),
		orderCreatedPub,
		logger,
		m,
	)

	e := server.New(logger, registry)
	handlers.NewCheckoutHandler(cfg.ServiceName, dispatcher).RegisterRoutes(e)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := server.Run(ctx, e, cfg.ServerPort, logger); err != nil {
		logger.WithError(err).Error("HTTP server stopped")
		queueManager.Close()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
