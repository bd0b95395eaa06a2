package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flowHandlerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelscope",
		Subsystem: "handler",
		Name:      "flow",
		Help:      "Flow handler requests by phase and status",
	}, []string{"phase", "status", "errorType"})
	FlowHandlerRequests = func(phase, status, errorType string) prometheus.Counter {
		return flowHandlerRequests.WithLabelValues(phase, status, errorType)
	}
)
