package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relay copies its single input "in" to its single output "out".
func relay() *FuncComponent {
	return NewFuncComponent([]string{"in"}, []string{"out"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"out": in["in"]}, nil
	})
}

// suffix appends tag to the string on "in".
func suffix(tag string) *FuncComponent {
	return NewFuncComponent([]string{"in"}, []string{"out"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		s, err := Input[string](in, "in")
		if err != nil {
			return nil, err
		}
		return map[string]any{"out": s + tag}, nil
	})
}

func join() *FuncComponent {
	return NewFuncComponent([]string{"left", "right"}, []string{"out"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		l, err := Input[string](in, "left")
		if err != nil {
			return nil, err
		}
		r, err := Input[string](in, "right")
		if err != nil {
			return nil, err
		}
		return map[string]any{"out": l + "|" + r}, nil
	})
}

func TestAddComponent(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.AddComponent("a", relay()))

	err := p.AddComponent("a", relay())
	assert.ErrorIs(t, err, ErrDuplicateName)

	assert.ErrorIs(t, p.AddComponent("", relay()), ErrInvalidName)
	assert.ErrorIs(t, p.AddComponent("x.y", relay()), ErrInvalidName)
	assert.ErrorIs(t, p.AddComponent("nil", nil), ErrInvalidName)

	c, ok := p.Component("a")
	assert.True(t, ok)
	assert.NotNil(t, c)
	_, ok = p.Component("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, p.Components())
}

func TestConnect(t *testing.T) {
	t.Run("unknown component", func(t *testing.T) {
		p := NewPipeline()
		require.NoError(t, p.AddComponent("a", relay()))
		assert.ErrorIs(t, p.Connect("a.out", "b.in"), ErrUnknownComponent)
		assert.ErrorIs(t, p.Connect("z.out", "a.in"), ErrUnknownComponent)
	})

	t.Run("unknown socket", func(t *testing.T) {
		p := NewPipeline()
		require.NoError(t, p.AddComponent("a", relay()))
		require.NoError(t, p.AddComponent("b", relay()))
		assert.ErrorIs(t, p.Connect("a.nope", "b.in"), ErrUnknownSocket)
		assert.ErrorIs(t, p.Connect("a.out", "b.nope"), ErrUnknownSocket)
	})

	t.Run("socket already bound", func(t *testing.T) {
		p := NewPipeline()
		require.NoError(t, p.AddComponent("a", relay()))
		require.NoError(t, p.AddComponent("b", relay()))
		require.NoError(t, p.AddComponent("c", relay()))
		require.NoError(t, p.Connect("a.out", "c.in"))
		assert.ErrorIs(t, p.Connect("b.out", "c.in"), ErrSocketAlreadyBound)
		assert.Len(t, p.Edges(), 1)
	})

	t.Run("fan out is allowed", func(t *testing.T) {
		p := NewPipeline()
		require.NoError(t, p.AddComponent("a", relay()))
		require.NoError(t, p.AddComponent("b", relay()))
		require.NoError(t, p.AddComponent("c", relay()))
		require.NoError(t, p.Connect("a.out", "b.in"))
		require.NoError(t, p.Connect("a.out", "c.in"))
		assert.Len(t, p.Edges(), 2)
	})

	t.Run("omitted sockets are resolved", func(t *testing.T) {
		p := NewPipeline()
		require.NoError(t, p.AddComponent("a", relay()))
		require.NoError(t, p.AddComponent("b", relay()))
		require.NoError(t, p.AddComponent("j", join()))

		require.NoError(t, p.Connect("a", "b"))
		require.NoError(t, p.Connect("a", "j.left"))
		require.NoError(t, p.Connect("b", "j"))

		assert.Equal(t, []Edge{
			{From: "a", FromSocket: "out", To: "b", ToSocket: "in"},
			{From: "a", FromSocket: "out", To: "j", ToSocket: "left"},
			{From: "b", FromSocket: "out", To: "j", ToSocket: "right"},
		}, p.Edges())
	})

	t.Run("ambiguous sockets are rejected", func(t *testing.T) {
		p := NewPipeline()
		require.NoError(t, p.AddComponent("a", relay()))
		require.NoError(t, p.AddComponent("j", join()))
		require.NoError(t, p.AddComponent("split", NewFuncComponent([]string{"in"}, []string{"x", "y"}, nil)))

		assert.ErrorIs(t, p.Connect("a", "j"), ErrUnknownSocket)
		assert.ErrorIs(t, p.Connect("split", "a"), ErrUnknownSocket)
	})
}

func TestOrder(t *testing.T) {
	p := NewPipeline()
	// Registered out of dependency order.
	require.NoError(t, p.AddComponent("c", relay()))
	require.NoError(t, p.AddComponent("b", relay()))
	require.NoError(t, p.AddComponent("a", relay()))
	require.NoError(t, p.AddComponent("free", relay()))
	require.NoError(t, p.Connect("a.out", "b.in"))
	require.NoError(t, p.Connect("b.out", "c.in"))

	order, err := p.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "free", "c"}, order)

	for range 5 {
		again, err := p.Order()
		require.NoError(t, err)
		assert.Equal(t, order, again)
	}
}

func TestCycleDetected(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.AddComponent("a", relay()))
	require.NoError(t, p.AddComponent("b", relay()))
	require.NoError(t, p.AddComponent("c", relay()))
	require.NoError(t, p.Connect("a.out", "b.in"))
	require.NoError(t, p.Connect("b.out", "c.in"))
	require.NoError(t, p.Connect("c.out", "a.in"))

	_, err := p.Order()
	assert.ErrorIs(t, err, ErrCycleDetected)

	out, err := p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrCycleDetected)
	assert.Nil(t, out)
}

func TestRun(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.AddComponent("first", suffix("-1")))
	require.NoError(t, p.AddComponent("second", suffix("-2")))
	require.NoError(t, p.Connect("first.out", "second.in"))

	out, err := p.Run(context.Background(), Inputs{"first": {"in": "x"}})
	require.NoError(t, err)

	v, ok := out.Get("second", "out")
	require.True(t, ok)
	assert.Equal(t, "x-1-2", v)
	assert.Equal(t, "x-1", out["first"]["out"])
	assert.Equal(t, map[string]any{"first.out": "x-1", "second.out": "x-1-2"}, out.Flatten())
}

func TestRunInputValidation(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.AddComponent("first", suffix("-1")))
	require.NoError(t, p.AddComponent("second", suffix("-2")))
	require.NoError(t, p.Connect("first.out", "second.in"))

	tests := []struct {
		name   string
		inputs Inputs
		want   error
	}{
		{"unknown component", Inputs{"third": {"in": "x"}}, ErrUnknownComponent},
		{"unknown socket", Inputs{"first": {"nope": "x"}}, ErrUnknownSocket},
		{"wired socket", Inputs{"first": {"in": "x"}, "second": {"in": "y"}}, ErrSocketAlreadyBound},
		{"missing required input", nil, ErrUnsatisfiedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Run(context.Background(), tt.inputs)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, out)
		})
	}
}

func TestRunOptionalInput(t *testing.T) {
	var seen map[string]any
	c := &FuncComponent{
		Inputs:  []InputSocket{{Name: "query"}, {Name: "top_k", Optional: true}},
		Outputs: []string{"k"},
		Fn: func(ctx context.Context, in map[string]any) (map[string]any, error) {
			seen = in
			k, err := OptionalInput(in, "top_k", 10)
			if err != nil {
				return nil, err
			}
			return map[string]any{"k": k}, nil
		},
	}

	p := NewPipeline()
	require.NoError(t, p.AddComponent("r", c))

	out, err := p.Run(context.Background(), Inputs{"r": {"query": "q"}})
	require.NoError(t, err)
	assert.Equal(t, 10, out["r"]["k"])
	assert.NotContains(t, seen, "top_k")

	out, err = p.Run(context.Background(), Inputs{"r": {"query": "q", "top_k": 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, out["r"]["k"])
}

func TestRunComponentError(t *testing.T) {
	boom := errors.New("boom")
	var ranAfter atomic.Bool

	p := NewPipeline()
	require.NoError(t, p.AddComponent("ok", suffix("!")))
	require.NoError(t, p.AddComponent("bad", NewFuncComponent([]string{"in"}, []string{"out"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return nil, boom
	})))
	require.NoError(t, p.AddComponent("after", NewFuncComponent([]string{"in"}, []string{"out"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		ranAfter.Store(true)
		return map[string]any{"out": in["in"]}, nil
	})))
	require.NoError(t, p.Connect("ok.out", "bad.in"))
	require.NoError(t, p.Connect("bad.out", "after.in"))

	out, err := p.Run(context.Background(), Inputs{"ok": {"in": "x"}})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, boom)

	var ce *ComponentError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "bad", ce.Component)
	assert.False(t, ranAfter.Load())
}

func TestRunRecoversPanic(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.AddComponent("panics", NewFuncComponent(nil, []string{"out"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		panic("unexpected")
	})))

	_, err := p.Run(context.Background(), nil)
	var ce *ComponentError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "unexpected")
}

func TestRunUndeclaredOutput(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.AddComponent("sloppy", NewFuncComponent(nil, []string{"out"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"other": 1}, nil
	})))

	_, err := p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnknownSocket)
}

func TestRunCanceledContext(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.AddComponent("a", suffix("!")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, Inputs{"a": {"in": "x"}})
	assert.ErrorIs(t, err, context.Canceled)
}

// diamond builds src -> (left, right) -> join.
func diamond(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p := NewPipeline(opts...)
	require.NoError(t, p.AddComponent("src", suffix("")))
	require.NoError(t, p.AddComponent("left", suffix("L")))
	require.NoError(t, p.AddComponent("right", suffix("R")))
	require.NoError(t, p.AddComponent("join", join()))
	require.NoError(t, p.Connect("src", "left"))
	require.NoError(t, p.Connect("src", "right"))
	require.NoError(t, p.Connect("left", "join.left"))
	require.NoError(t, p.Connect("right", "join.right"))
	return p
}

func TestParallelMatchesSequential(t *testing.T) {
	inputs := Inputs{"src": {"in": "x"}}

	seq, err := diamond(t).Run(context.Background(), inputs)
	require.NoError(t, err)
	par, err := diamond(t, WithParallel()).Run(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, seq, par)
	assert.Equal(t, "xL|xR", par["join"]["out"])
}

func TestParallelRunsLevelConcurrently(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	slow := func() *FuncComponent {
		return NewFuncComponent(nil, []string{"out"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
			mu.Lock()
			running++
			peak = max(peak, running)
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return map[string]any{"out": true}, nil
		})
	}

	p := NewPipeline(WithParallel())
	for i := range 3 {
		require.NoError(t, p.AddComponent(fmt.Sprintf("s%d", i), slow()))
	}
	_, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Greater(t, peak, 1)
}

func TestParallelError(t *testing.T) {
	p := diamond(t, WithParallel())
	require.NoError(t, p.AddComponent("fail", NewFuncComponent(nil, []string{"out"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return nil, errors.New("level failure")
	})))

	out, err := p.Run(context.Background(), Inputs{"src": {"in": "x"}})
	assert.Nil(t, out)
	var ce *ComponentError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "fail", ce.Component)
}

func TestParseInputs(t *testing.T) {
	in, err := ParseInputs(map[string]any{"retriever.query": "q", "retriever.top_k": 2, "builder.query": "q"})
	require.NoError(t, err)
	assert.Equal(t, Inputs{
		"retriever": {"query": "q", "top_k": 2},
		"builder":   {"query": "q"},
	}, in)

	_, err = ParseInputs(map[string]any{"noseparator": 1})
	assert.ErrorIs(t, err, ErrUnknownSocket)
}

func TestInputHelpers(t *testing.T) {
	in := map[string]any{"s": "text", "n": 3, "nil": nil}

	s, err := Input[string](in, "s")
	require.NoError(t, err)
	assert.Equal(t, "text", s)

	_, err = Input[string](in, "n")
	assert.ErrorIs(t, err, ErrInputType)

	_, err = Input[string](in, "missing")
	assert.ErrorIs(t, err, ErrUnsatisfiedInput)

	n, err := OptionalInput(in, "nil", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestTracer(t *testing.T) {
	tracer := NewTracer()
	var mu sync.Mutex
	var events []string
	tracer.AddHook(TraceHookFunc(func(ctx context.Context, span *TraceSpan) {
		mu.Lock()
		defer mu.Unlock()
		switch span.Event {
		case TraceEventEdgeTraversal:
			events = append(events, string(span.Event)+":"+span.Edge.String())
		default:
			events = append(events, string(span.Event)+":"+span.Component)
		}
	}))

	p := NewPipeline(WithTracer(tracer))
	require.NoError(t, p.AddComponent("first", suffix("-1")))
	require.NoError(t, p.AddComponent("second", suffix("-2")))
	require.NoError(t, p.Connect("first", "second"))

	_, err := p.Run(context.Background(), Inputs{"first": {"in": "x"}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"pipeline_start:",
		"component_start:first",
		"component_end:first",
		"edge_traversal:first.out -> second.in",
		"component_start:second",
		"component_end:second",
		"pipeline_end:",
	}, events)

	spans := tracer.GetSpans()
	assert.Len(t, spans, 4)

	var root *TraceSpan
	for _, s := range spans {
		if s.Event == TraceEventPipelineEnd {
			root = s
		}
	}
	require.NotNil(t, root)
	assert.NotEmpty(t, root.Metadata["run_id"])
	for _, s := range spans {
		if s != root {
			assert.Equal(t, root.ID, s.ParentID)
		}
	}

	tracer.Clear()
	assert.Empty(t, tracer.GetSpans())
}

func TestTracerWithoutSpans(t *testing.T) {
	tracer := NewTracer(WithoutSpans())
	var mu sync.Mutex
	var runIDs []any
	tracer.AddHook(TraceHookFunc(func(ctx context.Context, span *TraceSpan) {
		if span.Event == TraceEventPipelineStart {
			mu.Lock()
			runIDs = append(runIDs, span.Metadata["run_id"])
			mu.Unlock()
		}
	}))

	p := NewPipeline(WithTracer(tracer))
	require.NoError(t, p.AddComponent("first", suffix("-1")))
	for range 3 {
		_, err := p.Run(context.Background(), Inputs{"first": {"in": "x"}})
		require.NoError(t, err)
	}

	assert.Empty(t, tracer.GetSpans())
	require.Len(t, runIDs, 3)
	for _, id := range runIDs {
		assert.NotEmpty(t, id)
	}
}

func TestTracerSpansAreCopies(t *testing.T) {
	tracer := NewTracer()
	var during map[string]*TraceSpan
	p := NewPipeline(WithTracer(tracer))
	require.NoError(t, p.AddComponent("snap", NewFuncComponent([]string{"in"}, []string{"out"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		during = tracer.GetSpans()
		return map[string]any{"out": in["in"]}, nil
	})))

	_, err := p.Run(context.Background(), Inputs{"snap": {"in": "x"}})
	require.NoError(t, err)

	require.Len(t, during, 2)
	for id, s := range during {
		assert.True(t, s.EndTime.IsZero())
		assert.Contains(t, []TraceEvent{TraceEventPipelineStart, TraceEventComponentStart}, s.Event)
		after := tracer.GetSpans()[id]
		require.NotNil(t, after)
		assert.False(t, after.EndTime.IsZero())
		assert.NotSame(t, s, after)
	}
}

func TestTracerRecordsErrors(t *testing.T) {
	tracer := NewTracer()
	p := NewPipeline(WithTracer(tracer))
	require.NoError(t, p.AddComponent("bad", NewFuncComponent(nil, []string{"out"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return nil, errors.New("nope")
	})))

	_, err := p.Run(context.Background(), nil)
	require.Error(t, err)

	var kinds []TraceEvent
	for _, s := range tracer.GetSpans() {
		kinds = append(kinds, s.Event)
	}
	assert.ElementsMatch(t, []TraceEvent{TraceEventPipelineError, TraceEventComponentError}, kinds)
}

func TestOutputsGetMissing(t *testing.T) {
	var out Outputs
	_, ok := out.Get("a", "b")
	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(Edge{From: "a", FromSocket: "x", To: "b", ToSocket: "y"}.String(), "a.x"))
}
