// Package messagingtest provides an in-memory broker that satisfies the
// messaging Dialer contract. Queues are FIFO, routed by name through the
// default exchange, and deliveries handed to a consumer are gone for good.
package messagingtest

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dylan-murrayy/Rabbit-Demo/pkg/messaging"
)

const queueCapacity = 1024

var ErrBrokerDown = errors.New("broker unreachable")

type queue struct {
	durable bool
	msgs    chan amqp.Delivery
}

type Broker struct {
	mu      sync.Mutex
	queues  map[string]*queue
	conns   []*Conn
	down    bool
	dials   int
	failPub bool
}

func NewBroker() *Broker {
	return &Broker{queues: make(map[string]*queue)}
}

// Dial is a messaging.Dialer.
func (b *Broker) Dial(string) (messaging.Broker, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	if b.down {
		return nil, ErrBrokerDown
	}
	conn := &Conn{broker: b, done: make(chan struct{})}
	b.conns = append(b.conns, conn)
	return conn, nil
}

// SetDown makes every following Dial fail until SetDown(false).
func (b *Broker) SetDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

// FailPublishes makes channel publishes return an error.
func (b *Broker) FailPublishes(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failPub = fail
}

// DropConnections closes every open connection as a broker restart would.
func (b *Broker) DropConnections() {
	b.mu.Lock()
	conns := b.conns
	b.conns = nil
	b.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (b *Broker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *Broker) Declared(name string) (durable, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return false, false
	}
	return q.durable, true
}

func (b *Broker) Len(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[name]; ok {
		return len(q.msgs)
	}
	return 0
}

// Publish puts body on the named queue, declaring it if needed.
func (b *Broker) Publish(name string, body []byte) {
	b.declare(name, true).msgs <- amqp.Delivery{
		ContentType: "application/json",
		RoutingKey:  name,
		Body:        body,
	}
}

// Next waits up to timeout for a message on the named queue.
func (b *Broker) Next(name string, timeout time.Duration) ([]byte, bool) {
	q := b.declare(name, true)
	select {
	case d := <-q.msgs:
		return d.Body, true
	case <-time.After(timeout):
		return nil, false
	}
}

func (b *Broker) declare(name string, durable bool) *queue {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		q = &queue{durable: durable, msgs: make(chan amqp.Delivery, queueCapacity)}
		b.queues[name] = q
	}
	return q
}

func (b *Broker) lookup(name string) (*queue, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	return q, ok
}

func (b *Broker) publishFails() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failPub
}

type Conn struct {
	broker *Broker
	once   sync.Once
	done   chan struct{}
}

func (c *Conn) Channel() (messaging.Channel, error) {
	if c.IsClosed() {
		return nil, amqp.ErrClosed
	}
	return &Channel{conn: c}, nil
}

func (c *Conn) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

type Channel struct {
	conn   *Conn
	mu     sync.Mutex
	closed bool
}

func (ch *Channel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if ch.IsClosed() {
		return amqp.Queue{}, amqp.ErrClosed
	}
	ch.conn.broker.declare(name, durable)
	return amqp.Queue{Name: name}, nil
}

// PublishWithContext drops messages for undeclared queues, as the default
// exchange does.
func (ch *Channel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if ch.IsClosed() {
		return amqp.ErrClosed
	}
	if ch.conn.broker.publishFails() {
		return errors.New("publish rejected")
	}
	if exchange != "" {
		return nil
	}
	q, ok := ch.conn.broker.lookup(key)
	if !ok {
		return nil
	}
	select {
	case q.msgs <- amqp.Delivery{
		ContentType: msg.ContentType,
		MessageId:   msg.MessageId,
		Timestamp:   msg.Timestamp,
		RoutingKey:  key,
		Body:        msg.Body,
	}:
		return nil
	default:
		return errors.New("queue full")
	}
}

// Consume pumps the queue into the returned channel until the connection
// closes. Only auto-ack is modelled.
func (ch *Channel) Consume(name, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	if ch.IsClosed() {
		return nil, amqp.ErrClosed
	}
	q := ch.conn.broker.declare(name, true)
	out := make(chan amqp.Delivery)
	done := ch.conn.done

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case d := <-q.msgs:
				select {
				case out <- d:
				case <-done:
					// never reached the client; hand it back to the queue
					q.msgs <- d
					return
				}
			}
		}
	}()
	return out, nil
}

func (ch *Channel) IsClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed || ch.conn.IsClosed()
}

func (ch *Channel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.closed = true
	return nil
}
