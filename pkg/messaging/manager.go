package messaging

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// QueueManager ties publishers and consumers to one Connection and owns
// their lifecycle.
type QueueManager struct {
	conn       *Connection
	logger     logrus.FieldLogger
	publishers map[string]*Publisher
	consumers  map[string]*Consumer
	wg         sync.WaitGroup
	mutex      sync.RWMutex
}

func NewQueueManager(conn *Connection, logger logrus.FieldLogger) *QueueManager {
	return &QueueManager{
		conn:       conn,
		logger:     logger,
		publishers: make(map[string]*Publisher),
		consumers:  make(map[string]*Consumer),
	}
}

func (m *QueueManager) Connection() *Connection {
	return m.conn
}

func (m *QueueManager) GetOrCreatePublisher(key string, config PublisherConfig) *Publisher {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if pub, exists := m.publishers[key]; exists {
		return pub
	}

	pub := NewPublisher(m.conn, config)
	m.publishers[key] = pub
	return pub
}

func (m *QueueManager) RegisterConsumer(key string, consumer *Consumer) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.consumers[key] = consumer
}

// StartAllConsumers runs each registered consumer on its own goroutine.
func (m *QueueManager) StartAllConsumers(ctx context.Context) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for key, consumer := range m.consumers {
		m.wg.Add(1)
		go func(k string, c *Consumer) {
			defer m.wg.Done()
			if err := c.Start(ctx); err != nil {
				m.logger.WithError(err).WithField("consumer", k).Error("Consumer stopped with error")
				return
			}
			m.logger.WithField("consumer", k).Info("Consumer stopped")
		}(key, consumer)
	}
}

func (m *QueueManager) StopAllConsumers() {
	m.mutex.RLock()
	for _, consumer := range m.consumers {
		consumer.Stop()
	}
	m.mutex.RUnlock()

	m.wg.Wait()
}

func (m *QueueManager) Close() error {
	m.StopAllConsumers()
	return m.conn.Close()
}
