package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type PublisherConfig struct {
	Exchange   string
	RoutingKey string
	Mandatory  bool
	Immediate  bool
}

// Publisher sends to one routing key without waiting for broker confirms.
type Publisher struct {
	conn   *Connection
	config PublisherConfig
}

func NewPublisher(conn *Connection, config PublisherConfig) *Publisher {
	return &Publisher{
		conn:   conn,
		config: config,
	}
}

// Publish encodes payload as JSON and hands it to the broker.
func (p *Publisher) Publish(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", p.config.RoutingKey, err)
	}

	return p.PublishRaw(ctx, body)
}

// PublishRaw returns once the local publish call succeeds. A failed publish
// invalidates the shared connection so the next caller reconnects.
func (p *Publisher) PublishRaw(ctx context.Context, body []byte) error {
	ch, err := p.conn.Acquire()
	if err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		MessageId:    uuid.New().String(),
		Timestamp:    time.Now(),
		DeliveryMode: amqp.Persistent,
	}

	err = ch.PublishWithContext(
		ctx,
		p.config.Exchange,
		p.config.RoutingKey,
		p.config.Mandatory,
		p.config.Immediate,
		publishing,
	)
	if err != nil {
		p.conn.Invalidate()
		return fmt.Errorf("publish to %s: %w", p.config.RoutingKey, err)
	}
	return nil
}

func (p *Publisher) RoutingKey() string {
	return p.config.RoutingKey
}
