package messaging

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	QueueOrderCreated     = "order.created"
	QueuePaymentCompleted = "payment.completed"
)

// ConsumerState is the listener's position in its reconnect cycle.
type ConsumerState string

const (
	StateDisconnected ConsumerState = "disconnected"
	StateConnected    ConsumerState = "connected"
	StateConsuming    ConsumerState = "consuming"
)

type QueueConfig struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
}

// Channel is the part of *amqp.Channel the publisher and consumer use.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	IsClosed() bool
	Close() error
}

// Broker is an open broker connection.
type Broker interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a broker connection for url.
type Dialer func(url string) (Broker, error)
