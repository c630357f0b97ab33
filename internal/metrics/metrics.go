package metrics

import "github.com/prometheus/client_golang/prometheus"

// Метрики жизненного цикла заказов и доставки событий.
var (
	OrderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Applied order status transitions",
		},
		[]string{"from", "to"},
	)

	ReservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_reservations_total",
			Help: "Reservation attempts by result",
		},
		[]string{"result"},
	)

	EscalatedOrdersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_escalations_total",
			Help: "Orders moved to DISPUTE after reservation expiry",
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_expiry_sweep_duration_seconds",
			Help:    "Duration of expiry sweeps",
			Buckets: prometheus.DefBuckets,
		},
	)

	ActiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_active_subscribers",
			Help: "Open realtime subscriptions",
		},
	)

	PublishedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_published_total",
			Help: "Events published to the hub by type",
		},
		[]string{"type"},
	)

	DroppedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_dropped_total",
			Help: "Events not delivered by reason",
		},
		[]string{"reason"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Register регистрирует метрики в стандартном реестре. Вызывается один раз из main.
func Register() {
	prometheus.MustRegister(
		OrderTransitionsTotal,
		ReservationsTotal,
		EscalatedOrdersTotal,
		SweepDuration,
		ActiveSubscribers,
		PublishedEventsTotal,
		DroppedEventsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
