package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors both services record into. A nil *Metrics
// records nothing.
type Metrics struct {
	checkoutRequests   *prometheus.CounterVec
	checkoutDuration   *prometheus.HistogramVec
	paymentsExecuted   *prometheus.CounterVec
	paymentDuration    prometheus.Histogram
	messagesPublished  *prometheus.CounterVec
	listenerStateTotal *prometheus.CounterVec
}

func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		checkoutRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_requests_total",
			Help:      "Checkout submissions by dispatch mode and outcome.",
		}, []string{"mode", "outcome"}),
		checkoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Time spent dispatching a checkout submission.",
			Buckets:   []float64{0.005, 0.05, 0.25, 1, 2.5, 3, 3.5, 5, 10},
		}, []string{"mode"}),
		paymentsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_executed_total",
			Help:      "Payments executed by entry point.",
		}, []string{"entrypoint"}),
		paymentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_execution_seconds",
			Help:      "Duration of the payment execution routine.",
			Buckets:   []float64{0.5, 1, 2, 3, 4, 5},
		}),
		messagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Broker publishes by queue and outcome.",
		}, []string{"queue", "outcome"}),
		listenerStateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_state_transitions_total",
			Help:      "Queue listener transitions by target state.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		m.checkoutRequests,
		m.checkoutDuration,
		m.paymentsExecuted,
		m.paymentDuration,
		m.messagesPublished,
		m.listenerStateTotal,
	)
	return m
}

func (m *Metrics) ObserveCheckout(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.checkoutRequests.WithLabelValues(mode, outcome).Inc()
	m.checkoutDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePayment(entrypoint string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.paymentsExecuted.WithLabelValues(entrypoint).Inc()
	m.paymentDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePublish(queue string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.messagesPublished.WithLabelValues(queue, outcome).Inc()
}

func (m *Metrics) ObserveListenerState(state string) {
	if m == nil {
		return
	}
	m.listenerStateTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) CheckoutRequests() *prometheus.CounterVec {
	return m.checkoutRequests
}

func (m *Metrics) PaymentsExecuted() *prometheus.CounterVec {
	return m.paymentsExecuted
}

func (m *Metrics) MessagesPublished() *prometheus.CounterVec {
	return m.messagesPublished
}

func (m *Metrics) ListenerStates() *prometheus.CounterVec {
	return m.listenerStateTotal
}
