package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smallnest/ragpipe/rag"
)

const loopVariable = "loop"

// Render evaluates the template against vars. Every referenced path must
// resolve, otherwise ErrMissingVariable is returned. A null value renders as
// the empty string and iterates as an empty sequence.
func (t *Template) Render(vars map[string]any) (string, error) {
	r := &renderer{
		vars:  vars,
		cache: make(map[string]rag.Value),
	}
	if err := r.render(t.nodes); err != nil {
		return "", err
	}
	return r.sb.String(), nil
}

type renderer struct {
	vars   map[string]any
	cache  map[string]rag.Value
	scopes []map[string]rag.Value
	sb     strings.Builder
}

func (r *renderer) render(nodes []node) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case *textNode:
			r.sb.WriteString(n.text)
		case *varNode:
			v, err := r.resolve(n.path)
			if err != nil {
				return err
			}
			r.sb.WriteString(v.Text())
		case *forNode:
			if err := r.loop(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *renderer) loop(n *forNode) error {
	src, err := r.resolve(n.path)
	if err != nil {
		return err
	}

	frame := make(map[string]rag.Value, 3)
	r.scopes = append(r.scopes, frame)
	defer func() {
		r.scopes = r.scopes[:len(r.scopes)-1]
	}()

	if n.key != "" {
		if src.IsNull() {
			return nil
		}
		m, ok := src.AsMap()
		if !ok {
			return fmt.Errorf("%w: %s is a %s, not a map", ErrNotIterable, strings.Join(n.path, "."), src.Kind())
		}
		i := 0
		for k, v := range m.All() {
			frame[n.key] = rag.String(k)
			frame[n.value] = v
			frame[loopVariable] = loopState(i, m.Len())
			if err := r.render(n.body); err != nil {
				return err
			}
			i++
		}
		return nil
	}

	var items []rag.Value
	switch src.Kind() {
	case rag.KindNull:
	case rag.KindList:
		items, _ = src.AsList()
	case rag.KindMap:
		m, _ := src.AsMap()
		for _, k := range m.Keys() {
			items = append(items, rag.String(k))
		}
	default:
		return fmt.Errorf("%w: %s is a %s", ErrNotIterable, strings.Join(n.path, "."), src.Kind())
	}

	for i, item := range items {
		frame[n.value] = item
		frame[loopVariable] = loopState(i, len(items))
		if err := r.render(n.body); err != nil {
			return err
		}
	}
	return nil
}

func loopState(i, n int) rag.Value {
	m := rag.NewMap()
	m.Set("index", rag.Number(float64(i+1)))
	m.Set("index0", rag.Number(float64(i)))
	m.Set("first", rag.Bool(i == 0))
	m.Set("last", rag.Bool(i == n-1))
	return rag.MapValue(m)
}

func (r *renderer) resolve(path []string) (rag.Value, error) {
	v, err := r.root(path[0])
	if err != nil {
		return rag.Value{}, err
	}
	for i, seg := range path[1:] {
		next, ok := child(v, seg)
		if !ok {
			return rag.Value{}, fmt.Errorf("%w: %s", ErrMissingVariable, strings.Join(path[:i+2], "."))
		}
		v = next
	}
	return v, nil
}

// root looks a name up in the loop scopes, innermost first, then in the
// variables passed to Render.
func (r *renderer) root(name string) (rag.Value, error) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if v, ok := r.scopes[i][name]; ok {
			return v, nil
		}
	}
	if v, ok := r.cache[name]; ok {
		return v, nil
	}

	raw, ok := r.vars[name]
	if !ok {
		return rag.Value{}, fmt.Errorf("%w: %s", ErrMissingVariable, name)
	}
	v, err := ToValue(raw)
	if err != nil {
		return rag.Value{}, fmt.Errorf("variable %s: %w", name, err)
	}
	r.cache[name] = v
	return v, nil
}

func child(v rag.Value, seg string) (rag.Value, bool) {
	switch v.Kind() {
	case rag.KindMap:
		m, _ := v.AsMap()
		return m.Get(seg)
	case rag.KindList:
		list, _ := v.AsList()
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(list) {
			return rag.Value{}, false
		}
		return list[i], true
	}
	return rag.Value{}, false
}

// ToValue converts a template variable into a rag.Value. Documents become
// mappings with the keys id, content, meta and score.
func ToValue(x any) (rag.Value, error) {
	switch t := x.(type) {
	case rag.Document:
		return documentValue(t), nil
	case *rag.Document:
		if t == nil {
			return rag.Null(), nil
		}
		return documentValue(*t), nil
	case []rag.Document:
		list := make([]rag.Value, len(t))
		for i, d := range t {
			list[i] = documentValue(d)
		}
		return rag.List(list...), nil
	case []float32:
		list := make([]rag.Value, len(t))
		for i, f := range t {
			list[i] = rag.Number(float64(f))
		}
		return rag.List(list...), nil
	case fmt.Stringer:
		if _, ok := x.(rag.Value); !ok {
			return rag.String(t.String()), nil
		}
	}
	return rag.FromAny(x)
}

func documentValue(d rag.Document) rag.Value {
	m := rag.NewMap()
	m.Set("id", rag.String(d.ID))
	m.Set("content", rag.String(d.Content))
	m.Set("meta", rag.MapValue(d.Meta))
	m.Set("score", rag.Number(d.Score))
	return rag.MapValue(m)
}
