package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Messages          prometheus.Counter
	Intents           *prometheus.CounterVec
	ProviderFallbacks *prometheus.CounterVec
	UpdatesTotal      prometheus.Counter
	DuplicateUpdates  prometheus.Counter
	WSConnections     prometheus.Gauge
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			Messages: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "orsi",
				Name:      "messages_total",
				Help:      "Total user messages submitted to a session",
			}),
			Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "orsi",
				Name:      "intents_total",
				Help:      "Total routed messages per intent",
			}, []string{"intent"}),
			ProviderFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "orsi",
				Name:      "provider_fallbacks_total",
				Help:      "Total provider calls that resolved to their fallback",
			}, []string{"provider"}),
			UpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "orsi",
				Name:      "telegram_updates_total",
				Help:      "Total telegram updates received",
			}),
			DuplicateUpdates: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "orsi",
				Name:      "telegram_duplicate_updates_total",
				Help:      "Telegram updates dropped as redeliveries",
			}),
			WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "orsi",
				Name:      "ws_connections",
				Help:      "Open websocket chat connections",
			}),
		}
		prometheus.MustRegister(global.Messages, global.Intents, global.ProviderFallbacks, global.UpdatesTotal, global.DuplicateUpdates, global.WSConnections)
	})
	return global
}
