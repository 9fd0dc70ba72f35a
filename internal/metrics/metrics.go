package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drowsisense",
			Name:      "detection_events_total",
			Help:      "Detection events consumed, partitioned by state and source.",
		},
		[]string{"state", "source"},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drowsisense",
			Name:      "alerts_total",
			Help:      "Alerts dispatched, partitioned by type and severity.",
		},
		[]string{"type", "severity"},
	)

	alertFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "drowsisense",
			Name:      "alert_dispatch_failures_total",
			Help:      "Alerts that could not be dispatched, typically a failed insert.",
		},
	)

	fallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "drowsisense",
			Name:      "strategy_fallbacks_total",
			Help:      "Times the live strategy failed and the engine fell back to simulated.",
		},
	)

	strategyActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "drowsisense",
			Name:      "strategy_active",
			Help:      "1 for the currently active detection strategy, 0 otherwise.",
		},
		[]string{"strategy"},
	)

	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "drowsisense",
			Name:      "websocket_clients",
			Help:      "Connected dashboard WebSocket clients.",
		},
	)
)

// Register attaches all collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		eventsTotal,
		alertsTotal,
		alertFailuresTotal,
		fallbacksTotal,
		strategyActive,
		wsClients,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveEvent(state, source string) {
	eventsTotal.WithLabelValues(state, source).Inc()
}

func ObserveAlert(alertType, severity string) {
	alertsTotal.WithLabelValues(alertType, severity).Inc()
}

func ObserveAlertFailure() {
	alertFailuresTotal.Inc()
}

func ObserveFallback() {
	fallbacksTotal.Inc()
}

// SetActiveStrategy flips the gauge so exactly one strategy reads 1.
func SetActiveStrategy(strategy string) {
	for _, s := range []string{"live", "simulated"} {
		v := 0.0
		if s == strategy {
			v = 1.0
		}
		strategyActive.WithLabelValues(s).Set(v)
	}
}

func AddWebSocketClient(delta int) {
	wsClients.Add(float64(delta))
}
