package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsEmittedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelscope",
		Subsystem: "engine",
		Name:      "records_emitted",
	}, []string{"type"})
	recordsEmitted = func(recordType string) prometheus.Counter {
		return recordsEmittedCounter.WithLabelValues(recordType)
	}

	detectionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelscope",
		Subsystem: "engine",
		Name:      "detections",
	}, []string{"platform"})
	detections = func(platform string) prometheus.Counter {
		return detectionsCounter.WithLabelValues(platform)
	}

	handlerPanicsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelscope",
		Subsystem: "engine",
		Name:      "handler_panics",
	}, []string{"platform", "stage"})
	handlerPanics = func(platform, stage string) prometheus.Counter {
		return handlerPanicsCounter.WithLabelValues(platform, stage)
	}

	parseFallbacksCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelscope",
		Subsystem: "engine",
		Name:      "parse_fallbacks",
	}, []string{"kind"})
	parseFallbacks = func(kind string) prometheus.Counter {
		return parseFallbacksCounter.WithLabelValues(kind)
	}

	correlationsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelscope",
		Subsystem: "engine",
		Name:      "correlations",
	}, []string{"outcome"})
	correlations = func(outcome string) prometheus.Counter {
		return correlationsCounter.WithLabelValues(outcome)
	}
)
