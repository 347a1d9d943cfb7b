package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gurucore",
		Name:      "scheduler_jobs_registered",
		Help:      "Number of automations currently registered with the scheduler",
	})

	firesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gurucore",
		Name:      "scheduler_fires_total",
		Help:      "Total scheduled automation fires by outcome",
	}, []string{"status"})
)
