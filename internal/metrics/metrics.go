package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatfeed"

var (
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Fetch attempts by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	eventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_skipped_total",
			Help:      "Raw events dropped during decode, by reason",
		},
		[]string{"reason"},
	)

	messagesCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "messages_current",
			Help:      "Messages in the reconciled list",
		},
	)

	degraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "degraded",
			Help:      "1 when the last fetch failed and the list may be stale",
		},
	)

	lastSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sync_timestamp_seconds",
			Help:      "Unix time of the last successful fetch",
		},
	)

	relaySubmits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_submits_total",
			Help:      "Transaction submissions forwarded to the relay, by outcome",
		},
		[]string{"outcome"},
	)
)

func FetchOK(source string)   { fetchTotal.WithLabelValues(source, "ok").Inc() }
func FetchFail(source string) { fetchTotal.WithLabelValues(source, "error").Inc() }

func EventSkipped(reason string) { eventsSkipped.WithLabelValues(reason).Inc() }

func SetMessageCount(n int) { messagesCurrent.Set(float64(n)) }

func SetDegraded(v bool) {
	if v {
		degraded.Set(1)
		return
	}
	degraded.Set(0)
}

func MarkSynced(t time.Time) { lastSync.Set(float64(t.Unix())) }

func RelaySubmit(ok bool) {
	if ok {
		relaySubmits.WithLabelValues("ok").Inc()
		return
	}
	relaySubmits.WithLabelValues("error").Inc()
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }
