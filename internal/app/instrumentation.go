package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "melcloud",
		Subsystem: "monitor",
		Name:      "http_requests_total",
		Help:      "total number of MELCloud API requests",
	},
		[]string{"code", "method"},
	)

	requestDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "melcloud",
		Subsystem: "monitor",
		Name:      "http_request_duration_seconds",
		Help:      "duration of MELCloud API requests",
	},
		[]string{"code", "method"},
	)
)

// instrumentedHTTPClient wraps the default transport with request counter and
// duration metrics and registers them.
func instrumentedHTTPClient(timeout time.Duration, registry prometheus.Registerer) *http.Client {
	registry.MustRegister(requestCounter, requestDuration)
	rt := promhttp.InstrumentRoundTripperCounter(requestCounter,
		promhttp.InstrumentRoundTripperDuration(requestDuration,
			http.DefaultTransport,
		),
	)
	return &http.Client{Transport: rt, Timeout: timeout}
}
