package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

var errDeliveriesClosed = errors.New("message channel closed")

type ConsumerConfig struct {
	QueueName   string
	ConsumerTag string
	// AutoAck marks a message consumed as soon as the broker hands it over,
	// before the handler runs.
	AutoAck        bool
	Exclusive      bool
	NoLocal        bool
	NoWait         bool
	HandlerTimeout time.Duration
	Backoff        Backoff
}

type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Consumer runs a single-worker receive loop that survives broker restarts:
// disconnected -> connected -> consuming, and back to disconnected on any
// connection error, with no retry limit.
type Consumer struct {
	conn    *Connection
	config  ConsumerConfig
	handler MessageHandler
	logger  logrus.FieldLogger

	mutex   sync.Mutex
	state   ConsumerState
	observe func(ConsumerState)
	cancel  context.CancelFunc
	stopped bool
}

func NewConsumer(conn *Connection, config ConsumerConfig, handler MessageHandler, logger logrus.FieldLogger) *Consumer {
	if config.Backoff == nil {
		config.Backoff = ConstantBackoff(5 * time.Second)
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = 30 * time.Second
	}
	return &Consumer{
		conn:    conn,
		config:  config,
		handler: handler,
		logger:  logger.WithField("queue", config.QueueName),
		state:   StateDisconnected,
	}
}

// OnStateChange registers fn to be called on every state transition. Call it
// before Start.
func (c *Consumer) OnStateChange(fn func(ConsumerState)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.observe = fn
}

func (c *Consumer) State() ConsumerState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// Start blocks until ctx is cancelled or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mutex.Lock()
	if c.stopped {
		c.mutex.Unlock()
		return nil
	}
	c.cancel = cancel
	c.mutex.Unlock()

	attempt := 0
	for {
		err := c.consume(ctx, &attempt)
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}

		c.conn.Invalidate()
		attempt++
		delay := c.config.Backoff.Next(attempt)
		c.logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Warn("RabbitMQ connection failed, retrying")

		if err := sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, attempt *int) error {
	ch, err := c.conn.Acquire()
	if err != nil {
		return err
	}
	c.setState(StateConnected)

	msgs, err := ch.Consume(
		c.config.QueueName,
		c.config.ConsumerTag,
		c.config.AutoAck,
		c.config.Exclusive,
		c.config.NoLocal,
		c.config.NoWait,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.config.QueueName, err)
	}

	c.setState(StateConsuming)
	*attempt = 0
	c.logger.Info("Waiting for messages")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			if err := c.handleMessage(ctx, msg); err != nil {
				c.logger.WithError(err).WithField("message_id", msg.MessageId).Error("Error handling message")
			}
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, delivery amqp.Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.HandlerTimeout)
	defer cancel()

	if err := c.handler(ctx, delivery); err != nil {
		if !c.config.AutoAck {
			delivery.Nack(false, true)
		}
		return err
	}

	if !c.config.AutoAck {
		return delivery.Ack(false)
	}
	return nil
}

func (c *Consumer) setState(state ConsumerState) {
	c.mutex.Lock()
	if c.state == state {
		c.mutex.Unlock()
		return
	}
	c.state = state
	observe := c.observe
	c.mutex.Unlock()

	c.logger.WithField("state", state).Debug("Consumer state changed")
	if observe != nil {
		observe(state)
	}
}

func (c *Consumer) Stop() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
}
