package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/dylan-murrayy/Rabbit-Demo/payments/internal/services"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/messaging"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/metrics"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/models"
)

// OrderConsumerHandler turns order.created messages into payments and
// reports each one on payment.completed.
type OrderConsumerHandler struct {
	queueManager   *messaging.QueueManager
	factory        *messaging.Factory
	payments       *services.PaymentService
	completed      *messaging.Publisher
	logger         logrus.FieldLogger
	metrics        *metrics.Metrics
	reconnectDelay time.Duration
}

func NewOrderConsumerHandler(
	queueManager *messaging.QueueManager,
	factory *messaging.Factory,
	payments *services.PaymentService,
	logger logrus.FieldLogger,
	m *metrics.Metrics,
	reconnectDelay time.Duration,
) *OrderConsumerHandler {
	return &OrderConsumerHandler{
		queueManager:   queueManager,
		factory:        factory,
		payments:       payments,
		completed:      queueManager.GetOrCreatePublisher("payment_completed", factory.PaymentCompletedPublisher()),
		logger:         logger,
		metrics:        m,
		reconnectDelay: reconnectDelay,
	}
}

// RegisterConsumer adds the order.created listener to the queue manager. It
// runs once the manager's consumers are started.
func (h *OrderConsumerHandler) RegisterConsumer() *messaging.Consumer {
	consumer := messaging.NewConsumer(
		h.queueManager.Connection(),
		h.factory.OrderCreatedConsumer(h.reconnectDelay),
		h.HandleOrderCreated,
		h.logger,
	)
	consumer.OnStateChange(func(state messaging.ConsumerState) {
		h.metrics.ObserveListenerState(string(state))
	})

	h.queueManager.RegisterConsumer("order_created", consumer)
	return consumer
}

// HandleOrderCreated runs on the listener goroutine, so orders are paid and
// reported one at a time in arrival order. The message is already acked.
func (h *OrderConsumerHandler) HandleOrderCreated(ctx context.Context, delivery amqp.Delivery) error {
	var order models.OrderRequest
	if err := json.Unmarshal(delivery.Body, &order); err != nil {
		return fmt.Errorf("decode order.created message: %w", err)
	}
	if err := order.Validate(); err != nil {
		return fmt.Errorf("invalid order.created message: %w", err)
	}

	log := h.logger.WithField("order_id", order.OrderID)
	log.Info("Received order")

	start := time.Now()
	result := h.payments.Execute(ctx, order)
	h.metrics.ObservePayment("queue", time.Since(start))

	err := h.completed.Publish(ctx, result)
	h.metrics.ObservePublish(messaging.QueuePaymentCompleted, err)
	if err != nil {
		return fmt.Errorf("publish payment.completed for %s: %w", order.OrderID, err)
	}

	log.WithField("status", result.Status).Info("Published payment.completed")
	return nil
}
