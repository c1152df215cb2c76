package messaging

import (
	"time"
)

// Factory holds the queue topology shared by checkout and payments. Both
// queues are durable and routed through the default exchange by name.
type Factory struct {
	URL    string
	Dialer Dialer
}

func NewFactory(url string) *Factory {
	return &Factory{URL: url}
}

func (f *Factory) OrderCreatedQueue() QueueConfig {
	return QueueConfig{Name: QueueOrderCreated, Durable: true}
}

func (f *Factory) PaymentCompletedQueue() QueueConfig {
	return QueueConfig{Name: QueuePaymentCompleted, Durable: true}
}

// CheckoutConnectionConfig declares only the queue checkout publishes to.
func (f *Factory) CheckoutConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		URL:    f.URL,
		Queues: []QueueConfig{f.OrderCreatedQueue()},
		Dialer: f.Dialer,
	}
}

// PaymentsConnectionConfig declares both queues on every reconnect.
func (f *Factory) PaymentsConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		URL:    f.URL,
		Queues: []QueueConfig{f.OrderCreatedQueue(), f.PaymentCompletedQueue()},
		Dialer: f.Dialer,
	}
}

func (f *Factory) OrderCreatedPublisher() PublisherConfig {
	return PublisherConfig{
		Exchange:   "",
		RoutingKey: QueueOrderCreated,
	}
}

func (f *Factory) PaymentCompletedPublisher() PublisherConfig {
	return PublisherConfig{
		Exchange:   "",
		RoutingKey: QueuePaymentCompleted,
	}
}

func (f *Factory) OrderCreatedConsumer(reconnectDelay time.Duration) ConsumerConfig {
	return ConsumerConfig{
		QueueName:   QueueOrderCreated,
		ConsumerTag: "payment-service",
		AutoAck:     true,
		Backoff:     ConstantBackoff(reconnectDelay),
	}
}
