package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dylan-murrayy/Rabbit-Demo/pkg/models"
)

// PaymentService is the stub payment execution routine shared by the /pay
// endpoint and the order.created listener. It always succeeds after holding
// the caller for the configured latency.
type PaymentService struct {
	latency time.Duration
	logger  logrus.FieldLogger
	tracer  trace.Tracer
}

func NewPaymentService(latency time.Duration, logger logrus.FieldLogger) *PaymentService {
	return &PaymentService{
		latency: latency,
		logger:  logger,
		tracer:  otel.Tracer("github.com/dylan-murrayy/Rabbit-Demo/payments"),
	}
}

// Execute ignores ctx cancellation: a started payment always completes.
func (s *PaymentService) Execute(ctx context.Context, order models.OrderRequest) models.PaymentResult {
	_, span := s.tracer.Start(ctx, "payment.execute", trace.WithAttributes(
		attribute.String("order.id", order.OrderID),
		attribute.String("order.amount", order.Amount.String()),
	))
	defer span.End()

	log := s.logger.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"amount":   order.Amount.String(),
	})
	log.Info("Processing payment")

	time.Sleep(s.latency)

	log.Info("Payment completed")
	return models.PaymentResult{
		Status:  models.StatusPaid,
		OrderID: order.OrderID,
	}
}
