// Package prompt renders prompts from a small, side-effect free template language.
package prompt

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrMissingVariable is returned when a template refers to a variable or key that has no value.
	ErrMissingVariable = errors.New("missing template variable")

	// ErrSyntax is returned for templates that cannot be parsed.
	ErrSyntax = errors.New("template syntax error")

	// ErrNotIterable is returned when a for loop ranges over a scalar.
	ErrNotIterable = errors.New("value is not iterable")
)

// SyntaxError locates a parse failure. It matches ErrSyntax with errors.Is.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template syntax error at line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// Is reports whether target is ErrSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// Template is a parsed prompt template. The language supports only:
//
//	{{ path }}                          substitution
//	{% for x in path %}...{% endfor %}  iteration over a list, or the keys of a mapping
//	{% for k, v in path %}              iteration over the entries of a mapping
//	{% for k, v in path.items() %}      same as above
//	{# comment #}                       ignored
//
// A path is a dotted sequence of names and list indexes such as
// document.meta.title or documents.0.content. Inside a loop, loop.index,
// loop.index0, loop.first and loop.last describe the current iteration.
// Whitespace is kept exactly as written.
//
// A Template is immutable and safe for concurrent use.
type Template struct {
	source    string
	nodes     []node
	variables []string
}

// Parse parses a template.
func Parse(source string) (*Template, error) {
	p := &parser{src: source}
	nodes, _, err := p.parseNodes(false)
	if err != nil {
		return nil, err
	}
	return &Template{
		source:    source,
		nodes:     nodes,
		variables: freeVariables(nodes),
	}, nil
}

// MustParse is like Parse but panics if the template cannot be parsed.
func MustParse(source string) *Template {
	t, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return t
}

// Source returns the template text.
func (t *Template) Source() string {
	return t.source
}

// Variables returns the top-level variables the template reads, in order of first use.
// Loop variables are not included.
func (t *Template) Variables() []string {
	return slices.Clone(t.variables)
}

func freeVariables(nodes []node) []string {
	var vars []string
	seen := make(map[string]bool)

	use := func(name string, bound map[string]bool) {
		if bound[name] || seen[name] {
			return
		}
		seen[name] = true
		vars = append(vars, name)
	}

	var walk func(nodes []node, bound map[string]bool)
	walk = func(nodes []node, bound map[string]bool) {
		for _, n := range nodes {
			switch n := n.(type) {
			case *varNode:
				use(n.path[0], bound)
			case *forNode:
				use(n.path[0], bound)
				inner := make(map[string]bool, len(bound)+3)
				for k := range bound {
					inner[k] = true
				}
				inner[n.value] = true
				inner[loopVariable] = true
				if n.key != "" {
					inner[n.key] = true
				}
				walk(n.body, inner)
			}
		}
	}

	walk(nodes, nil)
	return vars
}
