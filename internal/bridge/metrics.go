package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	executesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gurucore",
		Name:      "bridge_executes_total",
		Help:      "Total worker commands executed by outcome",
	}, []string{"status"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gurucore",
		Name:      "bridge_queue_depth",
		Help:      "Commands pending on the worker, including the one in flight",
	})

	roundtripSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gurucore",
		Name:      "bridge_roundtrip_seconds",
		Help:      "Command round-trip time over the worker wire",
		Buckets:   prometheus.DefBuckets,
	})

	droppedLinesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gurucore",
		Name:      "bridge_dropped_lines_total",
		Help:      "Worker stdout lines dropped as noise",
	})

	crashesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gurucore",
		Name:      "bridge_worker_crashes_total",
		Help:      "Worker process exits while the bridge was open",
	})

	restartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gurucore",
		Name:      "bridge_worker_restarts_total",
		Help:      "Successful worker restarts by the supervisor",
	})
)
