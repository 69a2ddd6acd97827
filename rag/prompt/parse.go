package prompt

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

type node interface {
	node()
}

type textNode struct {
	text string
}

type varNode struct {
	path []string
	pos  int
}

// forNode iterates over a sequence (value only) or a mapping (key and value).
type forNode struct {
	key   string
	value string
	path  []string
	body  []node
	pos   int
}

func (*textNode) node() {}
func (*varNode) node()  {}
func (*forNode) node()  {}

var closers = map[string]string{
	"{{": "}}",
	"{%": "%}",
	"{#": "#}",
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(offset int, format string, args ...any) error {
	line, col := position(p.src, offset)
	return &SyntaxError{Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

// position converts a byte offset into a 1-based line and rune column.
func position(src string, offset int) (int, int) {
	before := src[:offset]
	line := strings.Count(before, "\n") + 1
	lineStart := strings.LastIndexByte(before, '\n') + 1
	return line, utf8.RuneCountInString(before[lineStart:]) + 1
}

// nextTag returns the offset of the next tag opener in s, or -1.
func nextTag(s string) int {
	for i := 0; i+1 < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		switch s[i+1] {
		case '{', '%', '#':
			return i
		}
	}
	return -1
}

// parseNodes consumes nodes until the end of input, or until an endfor tag
// when inLoop is set. It reports whether the endfor was seen.
func (p *parser) parseNodes(inLoop bool) ([]node, bool, error) {
	var nodes []node

	for p.pos < len(p.src) {
		i := nextTag(p.src[p.pos:])
		if i < 0 {
			nodes = append(nodes, &textNode{text: p.src[p.pos:]})
			p.pos = len(p.src)
			break
		}
		if i > 0 {
			nodes = append(nodes, &textNode{text: p.src[p.pos : p.pos+i]})
			p.pos += i
		}

		start := p.pos
		opener := p.src[start : start+2]
		closer := closers[opener]
		j := strings.Index(p.src[start+2:], closer)
		if j < 0 {
			return nil, false, p.errorf(start, "unclosed %s", opener)
		}
		inner := strings.TrimSpace(p.src[start+2 : start+2+j])
		p.pos = start + 2 + j + len(closer)

		switch opener {
		case "{#":
			continue

		case "{{":
			path, err := parsePath(inner)
			if err != nil {
				return nil, false, p.errorf(start, "%v", err)
			}
			nodes = append(nodes, &varNode{path: path, pos: start})

		case "{%":
			fields := strings.Fields(inner)
			switch {
			case len(fields) == 1 && fields[0] == "endfor":
				if !inLoop {
					return nil, false, p.errorf(start, "endfor without a matching for")
				}
				return nodes, true, nil

			case len(fields) > 0 && fields[0] == "for":
				loop, err := parseFor(strings.TrimSpace(inner[len("for"):]))
				if err != nil {
					return nil, false, p.errorf(start, "%v", err)
				}
				loop.pos = start

				body, closed, err := p.parseNodes(true)
				if err != nil {
					return nil, false, err
				}
				if !closed {
					return nil, false, p.errorf(start, "for loop is never closed with endfor")
				}
				loop.body = body
				nodes = append(nodes, loop)

			default:
				return nil, false, p.errorf(start, "unsupported statement %q", inner)
			}
		}
	}

	return nodes, false, nil
}

// parseFor parses "x in path", "k, v in path" and "k, v in path.items()".
func parseFor(s string) (*forNode, error) {
	fields := strings.Fields(s)
	in := slices.Index(fields, "in")
	if in < 1 || in == len(fields)-1 {
		return nil, fmt.Errorf("malformed for statement %q", s)
	}
	targets := strings.Join(fields[:in], "")
	source := strings.Join(fields[in+1:], " ")

	names := strings.Split(targets, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
		if !isIdent(names[i]) {
			return nil, fmt.Errorf("invalid loop variable %q", names[i])
		}
	}
	if len(names) > 2 {
		return nil, fmt.Errorf("at most two loop variables are supported, got %d", len(names))
	}

	source = strings.TrimSpace(source)
	items := strings.HasSuffix(source, ".items()")
	source = strings.TrimSuffix(source, ".items()")
	if items && len(names) != 2 {
		return nil, fmt.Errorf("items() needs a key and a value loop variable")
	}

	path, err := parsePath(source)
	if err != nil {
		return nil, err
	}

	loop := &forNode{path: path}
	if len(names) == 2 {
		loop.key, loop.value = names[0], names[1]
	} else {
		loop.value = names[0]
	}
	return loop, nil
}

// parsePath parses a dotted path whose first segment is an identifier and
// whose other segments are identifiers or list indexes.
func parsePath(s string) ([]string, error) {
	if s == "" {
		return nil, fmt.Errorf("empty expression")
	}
	segments := strings.Split(s, ".")
	for i, seg := range segments {
		if isIdent(seg) || (i > 0 && isIndex(seg)) {
			continue
		}
		return nil, fmt.Errorf("invalid expression %q", s)
	}
	return segments, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
