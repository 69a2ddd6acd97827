package graph

import (
	"fmt"
	"strings"
)

// Exporter provides methods to export pipelines in different formats
type Exporter struct {
	pipeline *Pipeline
}

// NewExporter creates a new exporter for the given pipeline
func NewExporter(p *Pipeline) *Exporter {
	return &Exporter{pipeline: p}
}

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
}

// DrawMermaid generates a Mermaid diagram representation of the pipeline
func (ge *Exporter) DrawMermaid() string {
	return ge.DrawMermaidWithOptions(MermaidOptions{
		Direction: "TD",
	})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options
func (ge *Exporter) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}
	fmt.Fprintf(&sb, "flowchart %s\n", direction)

	for _, name := range ge.pipeline.names {
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", name, ge.nodeLabel(name))
	}

	for _, edge := range ge.pipeline.edges {
		fmt.Fprintf(&sb, "    %s -->|%s| %s\n", edge.From, socketLabel(edge), edge.To)
	}

	// Components fed only by external inputs
	for _, name := range ge.pipeline.names {
		if len(ge.pipeline.inbound[name]) == 0 {
			fmt.Fprintf(&sb, "    style %s fill:#87CEEB\n", name)
		}
	}

	return sb.String()
}

// DrawDOT generates a DOT (Graphviz) representation of the pipeline
func (ge *Exporter) DrawDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TD;\n")
	sb.WriteString("    node [shape=box];\n")

	for _, name := range ge.pipeline.names {
		if len(ge.pipeline.inbound[name]) == 0 {
			fmt.Fprintf(&sb, "    %s [style=filled, fillcolor=lightblue];\n", name)
		}
	}

	for _, edge := range ge.pipeline.edges {
		fmt.Fprintf(&sb, "    %s -> %s [label=\"%s\"];\n", edge.From, edge.To, socketLabel(edge))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// DrawASCII lists components in execution order with the sockets feeding them
func (ge *Exporter) DrawASCII() string {
	order, err := ge.pipeline.Order()
	if err != nil {
		return fmt.Sprintf("Invalid pipeline: %v\n", err)
	}

	var sb strings.Builder
	sb.WriteString("Pipeline Execution Order:\n")
	for i, name := range order {
		connector := "├──"
		prefix := "│   "
		if i == len(order)-1 {
			connector = "└──"
			prefix = "    "
		}
		fmt.Fprintf(&sb, "%s %s\n", connector, name)

		n := ge.pipeline.nodes[name]
		for _, socket := range n.inputs {
			source := "(input)"
			if e, ok := ge.pipeline.inbound[name][socket.Name]; ok {
				source = e.From + "." + e.FromSocket
			} else if socket.Optional {
				source = "(optional input)"
			}
			fmt.Fprintf(&sb, "%s%s <- %s\n", prefix, socket.Name, source)
		}
	}
	return sb.String()
}

func (ge *Exporter) nodeLabel(name string) string {
	n := ge.pipeline.nodes[name]
	return fmt.Sprintf("%s (%T)", name, n.component)
}

func socketLabel(e Edge) string {
	if e.FromSocket == e.ToSocket {
		return e.FromSocket
	}
	return e.FromSocket + ":" + e.ToSocket
}
