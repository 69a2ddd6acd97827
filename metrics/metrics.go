// Package metrics exports pipeline execution metrics to Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smallnest/ragpipe/graph"
)

const namespace = "ragpipe"

// Collector is a graph.TraceHook recording run counts and durations.
type Collector struct {
	componentRuns     *prometheus.CounterVec
	componentDuration *prometheus.HistogramVec
	pipelineRuns      *prometheus.CounterVec
	pipelineDuration  prometheus.Histogram
	edgeTraversals    *prometheus.CounterVec
}

var _ graph.TraceHook = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		componentRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "component_runs_total",
				Help:      "Total number of component runs",
			},
			[]string{"component", "status"},
		),
		componentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "component_duration_seconds",
				Help:      "Component run duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"component"},
		),
		pipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Total number of pipeline runs",
			},
			[]string{"status"},
		),
		pipelineDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "Pipeline run duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		edgeTraversals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edge_traversals_total",
				Help:      "Total number of values routed between components",
			},
			[]string{"from", "to"},
		),
	}

	for _, m := range []prometheus.Collector{
		c.componentRuns, c.componentDuration, c.pipelineRuns, c.pipelineDuration, c.edgeTraversals,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// OnEvent implements graph.TraceHook.
func (c *Collector) OnEvent(ctx context.Context, span *graph.TraceSpan) {
	switch span.Event {
	case graph.TraceEventComponentEnd:
		c.componentRuns.WithLabelValues(span.Component, "ok").Inc()
		c.componentDuration.WithLabelValues(span.Component).Observe(span.Duration.Seconds())
	case graph.TraceEventComponentError:
		c.componentRuns.WithLabelValues(span.Component, "error").Inc()
		c.componentDuration.WithLabelValues(span.Component).Observe(span.Duration.Seconds())
	case graph.TraceEventPipelineEnd:
		c.pipelineRuns.WithLabelValues("ok").Inc()
		c.pipelineDuration.Observe(span.Duration.Seconds())
	case graph.TraceEventPipelineError:
		c.pipelineRuns.WithLabelValues("error").Inc()
		c.pipelineDuration.Observe(span.Duration.Seconds())
	case graph.TraceEventEdgeTraversal:
		c.edgeTraversals.WithLabelValues(span.Edge.From, span.Edge.To).Inc()
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
