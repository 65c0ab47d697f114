package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Broker-related Prometheus metrics. Defined in a standalone package to avoid
// import cycles between broker core and HTTP packages.

var (
	BrokerLogins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_logins_total",
		Help: "Callbacks de login federado por provider y outcome",
	}, []string{"provider", "outcome"})

	BrokerExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_token_exchanges_total",
		Help: "Token exchanges por provider y outcome",
	}, []string{"provider", "outcome"})

	BrokerTokenRequestLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "broker_token_request_latency_ms",
		Help:    "Latencia del token endpoint externo en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// RegisterBroker registers the broker metrics on the given registry (or default if nil).
func RegisterBroker(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{BrokerLogins, BrokerExchanges, BrokerTokenRequestLatency} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
