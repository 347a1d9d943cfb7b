package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gurucore",
	Name:      "gateway_messages_total",
	Help:      "Inbound messages handled, by routed guru and outcome",
}, []string{"guru", "status"})
