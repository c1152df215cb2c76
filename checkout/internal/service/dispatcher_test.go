package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dylan-murrayy/Rabbit-Demo/pkg/config"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/messaging"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/messaging/messagingtest"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/metrics"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/models"
)

const paymentLatency = 30 * time.Millisecond

var order = models.OrderRequest{OrderID: "A-100", Amount: decimal.RequireFromString("42.50")}

func fakePaymentService(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func healthyPayments(t *testing.T) *httptest.Server {
	return fakePaymentService(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		time.Sleep(paymentLatency)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.PaymentResult{Status: models.StatusPaid, OrderID: req.OrderID})
	})
}

func newDispatcher(mode string, payments PaymentCaller, publisher Publisher) (*Dispatcher, *metrics.Metrics) {
	logger, _ := test.NewNullLogger()
	m := metrics.New(prometheus.NewRegistry(), "test")
	return NewDispatcher(mode, payments, publisher, logger, m), m
}

func asyncPublisher(t *testing.T, broker *messagingtest.Broker) *messaging.Publisher {
	t.Helper()
	logger, _ := test.NewNullLogger()
	factory := messaging.NewFactory("amqp://test")
	factory.Dialer = broker.Dial
	conn := messaging.NewConnection(factory.CheckoutConnectionConfig(), logger)
	t.Cleanup(func() { conn.Close() })
	return messaging.NewPublisher(conn, factory.OrderCreatedPublisher())
}

func requireDispatchError(t *testing.T, err error) *DispatchError {
	t.Helper()
	require.Error(t, err)
	dispatchErr, ok := err.(*DispatchError)
	require.True(t, ok, "expected *DispatchError, got %T", err)
	return dispatchErr
}

func TestSyncReturnsPaymentResult(t *testing.T) {
	srv := healthyPayments(t)
	d, m := newDispatcher(config.ModeSync, NewPaymentClient(srv.URL, time.Second), nil)

	start := time.Now()
	outcome, err := d.Submit(context.Background(), order)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), paymentLatency)
	assert.Nil(t, outcome.Accepted)

	var result models.PaymentResult
	require.NoError(t, json.Unmarshal(outcome.Payment, &result))
	assert.Equal(t, models.StatusPaid, result.Status)
	assert.Equal(t, order.OrderID, result.OrderID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckoutRequests().WithLabelValues(config.ModeSync, "paid")))
}

func TestSyncPassesBodyThroughVerbatim(t *testing.T) {
	const body = `{"status":"PAID","order_id":"A-100","gateway":"stub"}`
	srv := fakePaymentService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	})
	d, _ := newDispatcher(config.ModeSync, NewPaymentClient(srv.URL, time.Second), nil)

	outcome, err := d.Submit(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, body, string(outcome.Payment))
}

func TestSyncSendsOrderAsBody(t *testing.T) {
	received := make(chan []byte, 1)
	srv := fakePaymentService(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		received <- b
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, `{"status":"PAID","order_id":"A-100"}`)
	})
	d, _ := newDispatcher(config.ModeSync, NewPaymentClient(srv.URL, time.Second), nil)

	_, err := d.Submit(context.Background(), order)
	require.NoError(t, err)
	assert.JSONEq(t, `{"order_id":"A-100","amount":42.5}`, string(<-received))
}

func TestSyncUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d, m := newDispatcher(config.ModeSync, NewPaymentClient(url, time.Second), nil)

	_, err := d.Submit(context.Background(), order)
	dispatchErr := requireDispatchError(t, err)

	assert.Equal(t, KindTransportUnavailable, dispatchErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, dispatchErr.Status)
	assert.Contains(t, dispatchErr.Detail, "Payment service unreachable: ")
	assert.Contains(t, dispatchErr.Detail, "connection refused")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckoutRequests().WithLabelValues(config.ModeSync, string(KindTransportUnavailable))))
}

func TestSyncTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := fakePaymentService(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	timeout := 50 * time.Millisecond
	d, _ := newDispatcher(config.ModeSync, NewPaymentClient(srv.URL, timeout), nil)

	start := time.Now()
	_, err := d.Submit(context.Background(), order)
	elapsed := time.Since(start)

	dispatchErr := requireDispatchError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, dispatchErr.Status)
	assert.Less(t, elapsed, timeout+time.Second)
}

func TestSyncUpstreamErrorHidesBody(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusPaymentRequired, http.StatusInternalServerError, http.StatusBadGateway} {
		srv := fakePaymentService(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"detail":"card 4111 declined by issuer"}`)
		})
		d, _ := newDispatcher(config.ModeSync, NewPaymentClient(srv.URL, time.Second), nil)

		_, err := d.Submit(context.Background(), order)
		dispatchErr := requireDispatchError(t, err)

		assert.Equal(t, KindUpstreamApplicationError, dispatchErr.Kind)
		assert.Equal(t, status, dispatchErr.Status)
		assert.Equal(t, DetailPaymentFailed, dispatchErr.Detail)
		assert.NotContains(t, dispatchErr.Error(), "4111")
	}
}

func TestSyncRedirectIsUpstreamFailure(t *testing.T) {
	var followed atomic.Bool
	elsewhere := fakePaymentService(t, func(w http.ResponseWriter, _ *http.Request) {
		followed.Store(true)
		_, _ = io.WriteString(w, `{"status":"PAID","order_id":"A-100"}`)
	})
	srv := fakePaymentService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, elsewhere.URL, http.StatusFound)
	})
	d, _ := newDispatcher(config.ModeSync, NewPaymentClient(srv.URL, time.Second), nil)

	outcome, err := d.Submit(context.Background(), order)
	dispatchErr := requireDispatchError(t, err)

	assert.Nil(t, outcome)
	assert.Equal(t, KindUpstreamApplicationError, dispatchErr.Kind)
	assert.Equal(t, http.StatusFound, dispatchErr.Status)
	assert.Equal(t, DetailPaymentFailed, dispatchErr.Detail)
	assert.False(t, followed.Load())
}

func TestSyncNonJSONBody(t *testing.T) {
	srv := fakePaymentService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>ok</html>")
	})
	d, _ := newDispatcher(config.ModeSync, NewPaymentClient(srv.URL, time.Second), nil)

	_, err := d.Submit(context.Background(), order)
	dispatchErr := requireDispatchError(t, err)
	assert.Equal(t, http.StatusBadGateway, dispatchErr.Status)
	assert.Equal(t, DetailPaymentFailed, dispatchErr.Detail)
}

func TestSyncIgnoresCallerCancellation(t *testing.T) {
	srv := healthyPayments(t)
	d, _ := newDispatcher(config.ModeSync, NewPaymentClient(srv.URL, time.Second), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(paymentLatency / 3)
		cancel()
	}()

	outcome, err := d.Submit(ctx, order)
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.Payment)
}

func TestAsyncAcceptsAndQueues(t *testing.T) {
	broker := messagingtest.NewBroker()
	d, m := newDispatcher(config.ModeAsync, nil, asyncPublisher(t, broker))

	start := time.Now()
	outcome, err := d.Submit(context.Background(), order)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), paymentLatency)

	require.NotNil(t, outcome.Accepted)
	assert.Equal(t, models.StatusOrderAccepted, outcome.Accepted.Status)
	assert.Equal(t, "Order received and processing started.", outcome.Accepted.Message)
	assert.Nil(t, outcome.Payment)

	body, ok := broker.Next(messaging.QueueOrderCreated, time.Second)
	require.True(t, ok)
	assert.JSONEq(t, `{"order_id":"A-100","amount":42.5}`, string(body))

	durable, declared := broker.Declared(messaging.QueueOrderCreated)
	assert.True(t, declared)
	assert.True(t, durable)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckoutRequests().WithLabelValues(config.ModeAsync, "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesPublished().WithLabelValues(messaging.QueueOrderCreated, "ok")))
}

func TestAsyncReusesConnection(t *testing.T) {
	broker := messagingtest.NewBroker()
	d, _ := newDispatcher(config.ModeAsync, nil, asyncPublisher(t, broker))

	for i := 0; i < 3; i++ {
		_, err := d.Submit(context.Background(), order)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, broker.Dials())
	assert.Equal(t, 3, broker.Len(messaging.QueueOrderCreated))
}

func TestAsyncBrokerUnavailable(t *testing.T) {
	broker := messagingtest.NewBroker()
	broker.SetDown(true)
	d, _ := newDispatcher(config.ModeAsync, nil, asyncPublisher(t, broker))

	for i := 0; i < 2; i++ {
		_, err := d.Submit(context.Background(), order)
		dispatchErr := requireDispatchError(t, err)
		assert.Equal(t, KindTransportUnavailable, dispatchErr.Kind)
		assert.Equal(t, http.StatusServiceUnavailable, dispatchErr.Status)
		assert.Equal(t, DetailMessagingUnavailable, dispatchErr.Detail)
	}
	assert.Equal(t, 2, broker.Dials())

	broker.SetDown(false)
	_, err := d.Submit(context.Background(), order)
	require.NoError(t, err)
}

func TestAsyncReconnectsAfterBrokerRestart(t *testing.T) {
	broker := messagingtest.NewBroker()
	d, _ := newDispatcher(config.ModeAsync, nil, asyncPublisher(t, broker))

	_, err := d.Submit(context.Background(), order)
	require.NoError(t, err)

	broker.DropConnections()

	_, err = d.Submit(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, 2, broker.Dials())
	assert.Equal(t, 2, broker.Len(messaging.QueueOrderCreated))
}

func TestAsyncPublishFailure(t *testing.T) {
	broker := messagingtest.NewBroker()
	d, m := newDispatcher(config.ModeAsync, nil, asyncPublisher(t, broker))

	broker.FailPublishes(true)
	_, err := d.Submit(context.Background(), order)
	dispatchErr := requireDispatchError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, dispatchErr.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesPublished().WithLabelValues(messaging.QueueOrderCreated, "error")))
}

func TestInvalidModeFailsOnEveryCall(t *testing.T) {
	srv := healthyPayments(t)

	for _, mode := range []string{"BATCH", "async", "sync"} {
		broker := messagingtest.NewBroker()
		d, _ := newDispatcher(mode, NewPaymentClient(srv.URL, time.Second), asyncPublisher(t, broker))

		for i := 0; i < 3; i++ {
			_, err := d.Submit(context.Background(), order)
			dispatchErr := requireDispatchError(t, err)
			assert.Equal(t, KindConfigurationError, dispatchErr.Kind, mode)
			assert.Equal(t, http.StatusInternalServerError, dispatchErr.Status)
			assert.Equal(t, DetailInvalidConfiguration, dispatchErr.Detail)
		}
		assert.Equal(t, 0, broker.Dials(), mode)
	}
}
