package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected = errors.New("not connected to RabbitMQ")
	ErrShutdown     = errors.New("connection is shutting down")
)

type ConnectionConfig struct {
	URL string
	// Queues are declared on every new connection.
	Queues []QueueConfig
	Dialer Dialer
}

// Connection owns one broker connection and channel, created lazily on
// Acquire and dropped by Invalidate. All access goes through the mutex, so
// publishers on request goroutines and the listener may share it.
type Connection struct {
	config  ConnectionConfig
	logger  logrus.FieldLogger
	mutex   sync.Mutex
	conn    Broker
	channel Channel
	closed  bool
}

func NewConnection(config ConnectionConfig, logger logrus.FieldLogger) *Connection {
	if config.Dialer == nil {
		config.Dialer = DialAMQP
	}
	return &Connection{
		config: config,
		logger: logger,
	}
}

// Acquire returns the live channel, dialing a fresh connection when there is
// none or the current one was closed.
func (c *Connection) Acquire() (Channel, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil, ErrShutdown
	}

	if c.channel != nil && !c.channel.IsClosed() && !c.conn.IsClosed() {
		return c.channel, nil
	}
	c.reset()

	conn, err := c.config.Dialer(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: open channel: %v", ErrNotConnected, err)
	}

	for _, q := range c.config.Queues {
		if _, err := ch.QueueDeclare(q.Name, q.Durable, q.AutoDelete, q.Exclusive, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("%w: declare queue %s: %v", ErrNotConnected, q.Name, err)
		}
	}

	c.conn = conn
	c.channel = ch

	c.logger.WithField("queues", len(c.config.Queues)).Info("Connected to RabbitMQ")
	return ch, nil
}

// Invalidate closes and forgets the current connection. The next Acquire
// dials again.
func (c *Connection) Invalidate() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.reset()
}

func (c *Connection) reset() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Connection) IsConnected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.conn != nil && !c.conn.IsClosed() && !c.closed
}

func (c *Connection) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.closed = true
	c.reset()
	return nil
}

// DefaultDialTimeout bounds the TCP connect and AMQP handshake. Acquire dials
// under the connection mutex, so this is also the longest a checkout waits
// behind another caller's dial.
const DefaultDialTimeout = 5 * time.Second

// DialAMQP is the production Dialer.
func DialAMQP(url string) (Broker, error) {
	return NewAMQPDialer(DefaultDialTimeout)(url)
}

func NewAMQPDialer(timeout time.Duration) Dialer {
	return func(url string) (Broker, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(timeout),
		})
		if err != nil {
			return nil, err
		}
		return &amqpBroker{conn: conn}, nil
	}
}

type amqpBroker struct {
	conn *amqp.Connection
}

func (b *amqpBroker) Channel() (Channel, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (b *amqpBroker) IsClosed() bool {
	return b.conn.IsClosed()
}

func (b *amqpBroker) Close() error {
	return b.conn.Close()
}
