package graph

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TraceEvent represents different types of events in pipeline execution
type TraceEvent string

const (
	// TraceEventPipelineStart indicates the start of a pipeline run
	TraceEventPipelineStart TraceEvent = "pipeline_start"

	// TraceEventPipelineEnd indicates the successful end of a pipeline run
	TraceEventPipelineEnd TraceEvent = "pipeline_end"

	// TraceEventPipelineError indicates a pipeline run that failed
	TraceEventPipelineError TraceEvent = "pipeline_error"

	// TraceEventComponentStart indicates the start of a component run
	TraceEventComponentStart TraceEvent = "component_start"

	// TraceEventComponentEnd indicates the successful end of a component run
	TraceEventComponentEnd TraceEvent = "component_end"

	// TraceEventComponentError indicates an error returned by a component
	TraceEventComponentError TraceEvent = "component_error"

	// TraceEventEdgeTraversal indicates a value delivered along an edge
	TraceEventEdgeTraversal TraceEvent = "edge_traversal"
)

// TraceSpan represents a span of execution with timing and metadata
type TraceSpan struct {
	// ID is a unique identifier for this span
	ID string

	// ParentID is the ID of the parent span (empty for root spans)
	ParentID string

	// Event indicates the type of event this span represents
	Event TraceEvent

	// Component is the name of the component being run (if applicable)
	Component string

	// Edge is the traversed connection for edge events
	Edge Edge

	// StartTime is when this span began
	StartTime time.Time

	// EndTime is when this span completed (zero for ongoing spans)
	EndTime time.Time

	// Duration is the total time taken (calculated when span ends)
	Duration time.Duration

	// Error contains any error that occurred during execution
	Error error

	// Metadata contains additional key-value pairs for observability
	Metadata map[string]any
}

// TraceHook receives trace events. Hooks of a parallel pipeline are called
// from several goroutines at once.
type TraceHook interface {
	// OnEvent is called when a trace event occurs
	OnEvent(ctx context.Context, span *TraceSpan)
}

// TraceHookFunc is a function adapter for TraceHook
type TraceHookFunc func(ctx context.Context, span *TraceSpan)

// OnEvent implements the TraceHook interface
func (f TraceHookFunc) OnEvent(ctx context.Context, span *TraceSpan) {
	f(ctx, span)
}

// Tracer manages trace collection and hooks
type Tracer struct {
	mu      sync.Mutex
	hooks   []TraceHook
	spans   map[string]*TraceSpan
	discard bool
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithoutSpans makes the tracer only call its hooks. GetSpans stays empty,
// so a long-lived tracer does not grow with every run.
func WithoutSpans() TracerOption {
	return func(t *Tracer) {
		t.discard = true
	}
}

// NewTracer creates a new tracer instance
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{
		spans: make(map[string]*TraceSpan),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AddHook registers a new trace hook
func (t *Tracer) AddHook(hook TraceHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, hook)
}

// StartSpan creates a new trace span
func (t *Tracer) StartSpan(ctx context.Context, event TraceEvent, component string) *TraceSpan {
	return t.StartSpanWithMetadata(ctx, event, component, nil)
}

// StartSpanWithMetadata creates a new trace span carrying a copy of metadata,
// visible to hooks from the start event on.
func (t *Tracer) StartSpanWithMetadata(ctx context.Context, event TraceEvent, component string, metadata map[string]any) *TraceSpan {
	span := &TraceSpan{
		ID:        uuid.NewString(),
		Event:     event,
		Component: component,
		StartTime: time.Now(),
		Metadata:  make(map[string]any, len(metadata)),
	}
	maps.Copy(span.Metadata, metadata)
	if parent := SpanFromContext(ctx); parent != nil {
		span.ParentID = parent.ID
	}

	t.record(ctx, span)
	return span
}

// EndSpan completes a trace span
func (t *Tracer) EndSpan(ctx context.Context, span *TraceSpan, err error) {
	t.mu.Lock()
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	span.Error = err

	switch span.Event {
	case TraceEventComponentStart:
		span.Event = TraceEventComponentEnd
		if err != nil {
			span.Event = TraceEventComponentError
		}
	case TraceEventPipelineStart:
		span.Event = TraceEventPipelineEnd
		if err != nil {
			span.Event = TraceEventPipelineError
		}
	}
	t.mu.Unlock()

	t.notify(ctx, span)
}

// TraceEdge records a value delivered along e
func (t *Tracer) TraceEdge(ctx context.Context, e Edge) {
	now := time.Now()
	span := &TraceSpan{
		ID:        uuid.NewString(),
		Event:     TraceEventEdgeTraversal,
		Edge:      e,
		StartTime: now,
		EndTime:   now,
		Metadata:  make(map[string]any),
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.ParentID = parent.ID
	}

	t.record(ctx, span)
}

func (t *Tracer) record(ctx context.Context, span *TraceSpan) {
	if !t.discard {
		t.mu.Lock()
		t.spans[span.ID] = span
		t.mu.Unlock()
	}

	t.notify(ctx, span)
}

func (t *Tracer) notify(ctx context.Context, span *TraceSpan) {
	t.mu.Lock()
	hooks := t.hooks
	t.mu.Unlock()

	for _, hook := range hooks {
		hook.OnEvent(ctx, span)
	}
}

// GetSpans returns copies of all collected spans. Spans still running keep
// changing in the tracer but not in the returned copies.
func (t *Tracer) GetSpans() map[string]*TraceSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]*TraceSpan, len(t.spans))
	for id, span := range t.spans {
		c := *span
		c.Metadata = maps.Clone(span.Metadata)
		out[id] = &c
	}
	return out
}

// Clear removes all collected spans
func (t *Tracer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = make(map[string]*TraceSpan)
}

type contextKey string

const spanContextKey contextKey = "ragpipe_span"

// ContextWithSpan returns a new context with the span stored
func ContextWithSpan(ctx context.Context, span *TraceSpan) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}

// SpanFromContext extracts a span from context
func SpanFromContext(ctx context.Context) *TraceSpan {
	if span, ok := ctx.Value(spanContextKey).(*TraceSpan); ok {
		return span
	}
	return nil
}
