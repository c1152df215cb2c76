package service

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dylan-murrayy/Rabbit-Demo/pkg/config"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/messaging"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/metrics"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/models"
)

const acceptedMessage = "Order received and processing started."

type PaymentCaller interface {
	Pay(ctx context.Context, order models.OrderRequest) (json.RawMessage, error)
}

type Publisher interface {
	Publish(ctx context.Context, payload interface{}) error
}

// Outcome holds exactly one of Payment (SYNC) or Accepted (ASYNC).
type Outcome struct {
	Payment  json.RawMessage
	Accepted *models.AcceptanceAck
}

// Dispatcher submits orders for payment either by calling the payment
// service directly or by queueing them on order.created, depending on the
// mode it was built with.
type Dispatcher struct {
	mode      string
	payments  PaymentCaller
	publisher Publisher
	logger    logrus.FieldLogger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewDispatcher(
	mode string,
	payments PaymentCaller,
	publisher Publisher,
	logger logrus.FieldLogger,
	m *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		mode:      mode,
		payments:  payments,
		publisher: publisher,
		logger:    logger.WithField("mode", mode),
		metrics:   m,
		tracer:    otel.Tracer("github.com/dylan-murrayy/Rabbit-Demo/checkout"),
	}
}

func (d *Dispatcher) Mode() string {
	return d.mode
}

// Submit routes order according to the configured mode. Errors are always
// *DispatchError.
func (d *Dispatcher) Submit(ctx context.Context, order models.OrderRequest) (*Outcome, error) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "checkout.submit", trace.WithAttributes(
		attribute.String("order.id", order.OrderID),
		attribute.String("dispatch.mode", d.mode),
	))
	defer span.End()

	var (
		outcome *Outcome
		err     error
	)
	switch d.mode {
	case config.ModeSync:
		outcome, err = d.submitSync(ctx, order)
	case config.ModeAsync:
		outcome, err = d.submitAsync(ctx, order)
	default:
		err = invalidConfiguration(d.mode)
	}

	d.metrics.ObserveCheckout(d.mode, outcomeLabel(outcome, err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.WithError(err).WithField("order_id", order.OrderID).Warn("Checkout failed")
		return nil, err
	}
	return outcome, nil
}

func (d *Dispatcher) submitSync(ctx context.Context, order models.OrderRequest) (*Outcome, error) {
	d.logger.WithField("order_id", order.OrderID).Info("Calling payment service synchronously")

	// the outbound call is bounded by the client timeout only
	raw, err := d.payments.Pay(context.WithoutCancel(ctx), order)
	if err != nil {
		var dispatchErr *DispatchError
		if errors.As(err, &dispatchErr) {
			return nil, dispatchErr
		}
		return nil, paymentUnreachable(err)
	}
	return &Outcome{Payment: raw}, nil
}

func (d *Dispatcher) submitAsync(ctx context.Context, order models.OrderRequest) (*Outcome, error) {
	if d.publisher == nil {
		return nil, messagingUnavailable(messaging.ErrNotConnected)
	}

	err := d.publisher.Publish(ctx, order)
	d.metrics.ObservePublish(messaging.QueueOrderCreated, err)
	if err != nil {
		return nil, messagingUnavailable(err)
	}

	d.logger.WithField("order_id", order.OrderID).Info("Published order to queue")
	return &Outcome{Accepted: &models.AcceptanceAck{
		Status:  models.StatusOrderAccepted,
		Message: acceptedMessage,
	}}, nil
}

func outcomeLabel(outcome *Outcome, err error) string {
	var dispatchErr *DispatchError
	switch {
	case errors.As(err, &dispatchErr):
		return string(dispatchErr.Kind)
	case err != nil:
		return "error"
	case outcome != nil && outcome.Accepted != nil:
		return "accepted"
	default:
		return "paid"
	}
}
