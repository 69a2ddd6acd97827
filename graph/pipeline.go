package graph

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smallnest/ragpipe/log"
)

// Inputs addresses external values by component name, then input socket name.
type Inputs map[string]map[string]any

// Outputs holds produced values by component name, then output socket name.
type Outputs map[string]map[string]any

// Get returns the value produced on component.socket.
func (o Outputs) Get(component, socket string) (any, bool) {
	v, ok := o[component][socket]
	return v, ok
}

// Flatten returns the outputs keyed by "component.socket".
func (o Outputs) Flatten() map[string]any {
	flat := make(map[string]any)
	for component, sockets := range o {
		for socket, v := range sockets {
			flat[component+"."+socket] = v
		}
	}
	return flat
}

// ParseInputs converts values keyed by "component.socket" into Inputs.
func ParseInputs(flat map[string]any) (Inputs, error) {
	inputs := make(Inputs)
	for addr, v := range flat {
		component, socket := splitAddress(addr)
		if component == "" || socket == "" {
			return nil, fmt.Errorf("%w: address %q must have the form component.socket", ErrUnknownSocket, addr)
		}
		if inputs[component] == nil {
			inputs[component] = make(map[string]any)
		}
		inputs[component][socket] = v
	}
	return inputs, nil
}

// Edge connects an output socket of one component to an input socket of another.
type Edge struct {
	From       string
	FromSocket string
	To         string
	ToSocket   string
}

func (e Edge) String() string {
	return e.From + "." + e.FromSocket + " -> " + e.To + "." + e.ToSocket
}

type node struct {
	name      string
	component Component
	inputs    []InputSocket
	outputs   []string
}

func (n *node) input(name string) (InputSocket, bool) {
	for _, s := range n.inputs {
		if s.Name == name {
			return s, true
		}
	}
	return InputSocket{}, false
}

type plan struct {
	order  []string
	levels [][]string
}

// Pipeline is a directed acyclic graph of named components connected through
// named sockets. Connections are validated eagerly; the execution order is
// computed once and reused until the graph changes.
//
// A Pipeline may be run concurrently, but must not be modified while a Run is in progress.
type Pipeline struct {
	nodes   map[string]*node
	names   []string
	edges   []Edge
	inbound map[string]map[string]Edge

	parallel bool
	tracer   *Tracer
	logger   log.Logger

	mu   sync.Mutex
	plan *plan
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithParallel runs components that share a topological level concurrently.
// Results are identical to sequential execution.
func WithParallel() Option {
	return func(p *Pipeline) {
		p.parallel = true
	}
}

// WithTracer records spans for every run.
func WithTracer(tracer *Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

// WithLogger sets the logger. By default the package-level logger is used.
func WithLogger(logger log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates an empty pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		nodes:   make(map[string]*node),
		inbound: make(map[string]map[string]Edge),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) log() log.Logger {
	if p.logger != nil {
		return p.logger
	}
	return log.GetDefaultLogger()
}

// AddComponent registers c under name.
func (p *Pipeline) AddComponent(name string, c Component) error {
	if name == "" || strings.Contains(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if c == nil {
		return fmt.Errorf("%w: component %s is nil", ErrInvalidName, name)
	}
	if _, ok := p.nodes[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	n := &node{
		name:      name,
		component: c,
		inputs:    slices.Clone(c.InputSockets()),
		outputs:   slices.Clone(c.OutputSockets()),
	}
	seen := make(map[string]bool)
	for _, s := range n.inputs {
		if seen[s.Name] {
			return fmt.Errorf("%w: component %s declares input %s twice", ErrDuplicateName, name, s.Name)
		}
		seen[s.Name] = true
	}

	p.nodes[name] = n
	p.names = append(p.names, name)
	p.invalidate()
	return nil
}

// Component returns the component registered under name.
func (p *Pipeline) Component(name string) (Component, bool) {
	n, ok := p.nodes[name]
	if !ok {
		return nil, false
	}
	return n.component, true
}

// Components returns the registered names in registration order.
func (p *Pipeline) Components() []string {
	return slices.Clone(p.names)
}

// Edges returns the connections in the order they were made.
func (p *Pipeline) Edges() []Edge {
	return slices.Clone(p.edges)
}

// Connect wires sender ("component.output") to receiver ("component.input").
//
// The socket part may be omitted. A sender without a socket resolves to its only
// output. A receiver without a socket resolves to the input named like the sender
// socket, or else to its only unconnected input.
func (p *Pipeline) Connect(sender, receiver string) error {
	fromName, fromSocket := splitAddress(sender)
	toName, toSocket := splitAddress(receiver)

	from, ok := p.nodes[fromName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, fromName)
	}
	to, ok := p.nodes[toName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, toName)
	}

	fromSocket, err := resolveOutput(from, fromSocket)
	if err != nil {
		return err
	}
	toSocket, err = p.resolveInput(to, toSocket, fromSocket)
	if err != nil {
		return err
	}

	if bound, ok := p.inbound[toName][toSocket]; ok {
		return fmt.Errorf("%w: %s.%s already receives from %s.%s", ErrSocketAlreadyBound, toName, toSocket, bound.From, bound.FromSocket)
	}

	edge := Edge{From: fromName, FromSocket: fromSocket, To: toName, ToSocket: toSocket}
	p.edges = append(p.edges, edge)
	if p.inbound[toName] == nil {
		p.inbound[toName] = make(map[string]Edge)
	}
	p.inbound[toName][toSocket] = edge
	p.invalidate()

	p.log().Debug("connected %s", edge)
	return nil
}

func splitAddress(addr string) (string, string) {
	name, socket, _ := strings.Cut(addr, ".")
	return name, socket
}

func resolveOutput(n *node, socket string) (string, error) {
	if socket == "" {
		if len(n.outputs) != 1 {
			return "", fmt.Errorf("%w: %s has %d outputs, name one explicitly", ErrUnknownSocket, n.name, len(n.outputs))
		}
		return n.outputs[0], nil
	}
	if !slices.Contains(n.outputs, socket) {
		return "", fmt.Errorf("%w: %s has no output %s", ErrUnknownSocket, n.name, socket)
	}
	return socket, nil
}

func (p *Pipeline) resolveInput(n *node, socket, senderSocket string) (string, error) {
	if socket != "" {
		if _, ok := n.input(socket); !ok {
			return "", fmt.Errorf("%w: %s has no input %s", ErrUnknownSocket, n.name, socket)
		}
		return socket, nil
	}

	if _, ok := n.input(senderSocket); ok {
		return senderSocket, nil
	}

	var free []string
	for _, s := range n.inputs {
		if _, bound := p.inbound[n.name][s.Name]; !bound {
			free = append(free, s.Name)
		}
	}
	if len(free) != 1 {
		return "", fmt.Errorf("%w: cannot choose an input of %s among %d unconnected sockets", ErrUnknownSocket, n.name, len(free))
	}
	return free[0], nil
}

func (p *Pipeline) invalidate() {
	p.mu.Lock()
	p.plan = nil
	p.mu.Unlock()
}

// Order returns the execution order. Components without a dependency between
// them keep their registration order.
func (p *Pipeline) Order() ([]string, error) {
	pl, err := p.compile()
	if err != nil {
		return nil, err
	}
	return slices.Clone(pl.order), nil
}

func (p *Pipeline) compile() (*plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.plan != nil {
		return p.plan, nil
	}
	pl, err := p.sort()
	if err != nil {
		return nil, err
	}
	p.plan = pl
	return pl, nil
}

// sort is Kahn's algorithm, always picking the earliest registered ready component.
func (p *Pipeline) sort() (*plan, error) {
	indegree := make(map[string]int, len(p.names))
	for _, e := range p.edges {
		indegree[e.To]++
	}

	done := make(map[string]bool, len(p.names))
	level := make(map[string]int, len(p.names))
	order := make([]string, 0, len(p.names))

	for len(order) < len(p.names) {
		next := ""
		for _, name := range p.names {
			if !done[name] && indegree[name] == 0 {
				next = name
				break
			}
		}
		if next == "" {
			var stuck []string
			for _, name := range p.names {
				if !done[name] {
					stuck = append(stuck, name)
				}
			}
			return nil, fmt.Errorf("%w: involving %s", ErrCycleDetected, strings.Join(stuck, ", "))
		}

		done[next] = true
		order = append(order, next)
		for _, e := range p.edges {
			if e.From != next {
				continue
			}
			indegree[e.To]--
			level[e.To] = max(level[e.To], level[next]+1)
		}
	}

	var levels [][]string
	for _, name := range order {
		l := level[name]
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], name)
	}

	return &plan{order: order, levels: levels}, nil
}

// Run executes every component exactly once in dependency order and returns
// all produced outputs. External inputs may only address sockets without an
// incoming connection. On any error no outputs are returned.
func (p *Pipeline) Run(ctx context.Context, inputs Inputs) (Outputs, error) {
	pl, err := p.compile()
	if err != nil {
		return nil, err
	}
	if err := p.validateInputs(inputs); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	var span *TraceSpan
	if p.tracer != nil {
		span = p.tracer.StartSpanWithMetadata(ctx, TraceEventPipelineStart, "", map[string]any{"run_id": runID})
		ctx = ContextWithSpan(ctx, span)
	}

	start := time.Now()
	p.log().Debug("pipeline run %s started: %s", runID, strings.Join(pl.order, " -> "))

	var results Outputs
	if p.parallel {
		results, err = p.executeLevels(ctx, pl, inputs)
	} else {
		results, err = p.executeSequential(ctx, pl, inputs)
	}

	if span != nil {
		p.tracer.EndSpan(ctx, span, err)
	}
	if err != nil {
		p.log().Debug("pipeline run %s failed after %s: %v", runID, time.Since(start), err)
		return nil, err
	}

	p.log().Debug("pipeline run %s finished in %s", runID, time.Since(start))
	return results, nil
}

func (p *Pipeline) validateInputs(inputs Inputs) error {
	for _, component := range slices.Sorted(maps.Keys(inputs)) {
		n, ok := p.nodes[component]
		if !ok {
			return fmt.Errorf("%w: input addressed to %s", ErrUnknownComponent, component)
		}
		for _, socket := range slices.Sorted(maps.Keys(inputs[component])) {
			if _, ok := n.input(socket); !ok {
				return fmt.Errorf("%w: %s has no input %s", ErrUnknownSocket, component, socket)
			}
			if e, ok := p.inbound[component][socket]; ok {
				return fmt.Errorf("%w: %s.%s is connected to %s.%s", ErrSocketAlreadyBound, component, socket, e.From, e.FromSocket)
			}
		}
	}
	return nil
}

func (p *Pipeline) executeSequential(ctx context.Context, pl *plan, inputs Inputs) (Outputs, error) {
	results := make(Outputs, len(pl.order))
	for _, name := range pl.order {
		in, err := p.gather(ctx, name, inputs, results)
		if err != nil {
			return nil, err
		}
		out, err := p.invoke(ctx, name, in)
		if err != nil {
			return nil, err
		}
		results[name] = out
	}
	return results, nil
}

func (p *Pipeline) executeLevels(ctx context.Context, pl *plan, inputs Inputs) (Outputs, error) {
	results := make(Outputs, len(pl.order))
	var mu sync.Mutex

	for _, level := range pl.levels {
		// Inputs of a level only depend on earlier levels, so they are gathered
		// before any component of this level starts writing results.
		gathered := make([]map[string]any, len(level))
		for i, name := range level {
			in, err := p.gather(ctx, name, inputs, results)
			if err != nil {
				return nil, err
			}
			gathered[i] = in
		}

		g, gctx := errgroup.WithContext(ctx)
		for i, name := range level {
			g.Go(func() error {
				out, err := p.invoke(gctx, name, gathered[i])
				if err != nil {
					return err
				}
				mu.Lock()
				results[name] = out
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (p *Pipeline) gather(ctx context.Context, name string, external Inputs, results Outputs) (map[string]any, error) {
	n := p.nodes[name]
	in := make(map[string]any, len(n.inputs))

	for _, socket := range n.inputs {
		if e, ok := p.inbound[name][socket.Name]; ok {
			if v, ok := results[e.From][e.FromSocket]; ok {
				in[socket.Name] = v
				if p.tracer != nil {
					p.tracer.TraceEdge(ctx, e)
				}
				continue
			}
		} else if v, ok := external[name][socket.Name]; ok {
			in[socket.Name] = v
			continue
		}

		if !socket.Optional {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnsatisfiedInput, name, socket.Name)
		}
	}
	return in, nil
}

func (p *Pipeline) invoke(ctx context.Context, name string, in map[string]any) (out map[string]any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := p.nodes[name]
	var span *TraceSpan
	if p.tracer != nil {
		span = p.tracer.StartSpan(ctx, TraceEventComponentStart, name)
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &ComponentError{Component: name, Err: fmt.Errorf("panic: %v", r)}
		}
		if span != nil {
			p.tracer.EndSpan(ctx, span, err)
		}
		p.log().Debug("component %s finished in %s", name, time.Since(start))
	}()

	out, err = n.component.Run(ctx, in)
	if err != nil {
		return nil, &ComponentError{Component: name, Err: err}
	}
	for socket := range out {
		if !slices.Contains(n.outputs, socket) {
			return nil, fmt.Errorf("%w: component %s produced undeclared output %s", ErrUnknownSocket, name, socket)
		}
	}
	if out == nil {
		out = make(map[string]any)
	}
	return out, nil
}
