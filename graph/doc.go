// Package graph provides the pipeline construction and execution engine for ragpipe.
//
// A Pipeline is a directed acyclic graph of named components. Every component
// declares named input sockets (required or optional) and named output sockets.
// Edges connect one output socket to one input socket; each input socket accepts
// at most one edge.
//
// # Core Concepts
//
// ## Components
// A Component receives its gathered inputs as a map keyed by socket name and
// returns its outputs the same way. FuncComponent adapts a plain function.
//
// ## Execution
// Run computes a topological order once (ties broken by registration order),
// runs every component exactly once, and returns all produced outputs keyed by
// component and socket. Inputs not fed by an edge come from the caller.
// Failures are reported with sentinel errors that work with errors.Is:
//
//   - ErrDuplicateName, ErrUnknownComponent, ErrUnknownSocket
//   - ErrSocketAlreadyBound, ErrCycleDetected, ErrUnsatisfiedInput
//   - *ComponentError wraps anything a component returns
//
// # Example Usage
//
//	p := graph.NewPipeline()
//	_ = p.AddComponent("upper", graph.NewFuncComponent(
//		[]string{"text"}, []string{"text"},
//		func(ctx context.Context, in map[string]any) (map[string]any, error) {
//			s, err := graph.Input[string](in, "text")
//			if err != nil {
//				return nil, err
//			}
//			return map[string]any{"text": strings.ToUpper(s)}, nil
//		}))
//
//	out, err := p.Run(ctx, graph.Inputs{"upper": {"text": "hello"}})
//
// # Observability
//
// WithTracer records pipeline, component and edge spans and forwards them to
// TraceHooks. Exporter renders a pipeline as Mermaid, DOT or ASCII.
package graph
