package executor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// ResultPath is an immutable position in the response tree. Every path
// descends from the RootPath singleton; extending a path never modifies it.
type ResultPath struct {
	parent  *ResultPath
	segment any // string for a field key, int for a list index
	level   int
}

var rootPath = &ResultPath{}

// RootPath returns the empty path of the response root.
func RootPath() *ResultPath { return rootPath }

// Segment returns p extended with a response key.
func (p *ResultPath) Segment(key string) *ResultPath {
	return &ResultPath{parent: p, segment: key, level: p.level + 1}
}

// Index returns p extended with a list index.
func (p *ResultPath) Index(i int) *ResultPath {
	return &ResultPath{parent: p, segment: i, level: p.level + 1}
}

// Parent returns the enclosing path, nil for the root.
func (p *ResultPath) Parent() *ResultPath { return p.parent }

func (p *ResultPath) IsRoot() bool { return p.parent == nil }

// IsListSegment reports whether the last segment is a list index.
func (p *ResultPath) IsListSegment() bool {
	_, ok := p.segment.(int)
	return ok
}

// SegmentName returns the last segment when it is a response key.
func (p *ResultPath) SegmentName() string {
	s, _ := p.segment.(string)
	return s
}

// SegmentIndex returns the last segment when it is a list index, or -1.
func (p *ResultPath) SegmentIndex() int {
	if i, ok := p.segment.(int); ok {
		return i
	}
	return -1
}

// Level is the number of segments in p.
func (p *ResultPath) Level() int { return p.level }

// ToList returns the segments from root to leaf.
func (p *ResultPath) ToList() []any {
	out := make([]any, p.level)
	for cur := p; cur.parent != nil; cur = cur.parent {
		out[cur.level-1] = cur.segment
	}
	return out
}

// AST converts p into the path representation used by gqlerror.
func (p *ResultPath) AST() ast.Path {
	if p == nil || p.level == 0 {
		return nil
	}
	out := make(ast.Path, p.level)
	for cur := p; cur.parent != nil; cur = cur.parent {
		switch s := cur.segment.(type) {
		case string:
			out[cur.level-1] = ast.PathName(s)
		case int:
			out[cur.level-1] = ast.PathIndex(s)
		}
	}
	return out
}

// Equal compares paths segment by segment.
func (p *ResultPath) Equal(o *ResultPath) bool {
	if p == o {
		return true
	}
	if p == nil || o == nil || p.level != o.level {
		return false
	}
	for a, b := p, o; a.parent != nil; a, b = a.parent, b.parent {
		if a.segment != b.segment {
			return false
		}
	}
	return true
}

// String renders p as "/user/friends[0]/name". The root renders as "".
func (p *ResultPath) String() string {
	if p == nil || p.level == 0 {
		return ""
	}
	var b strings.Builder
	for _, seg := range p.ToList() {
		switch s := seg.(type) {
		case string:
			b.WriteByte('/')
			b.WriteString(s)
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// ResultPathFromList builds a path from string and int segments.
func ResultPathFromList(segments []any) (*ResultPath, error) {
	p := RootPath()
	for _, seg := range segments {
		switch s := seg.(type) {
		case string:
			p = p.Segment(s)
		case int:
			p = p.Index(s)
		default:
			return nil, fmt.Errorf("invalid path segment %v (%T)", seg, seg)
		}
	}
	return p, nil
}

// ParseResultPath parses the String form of a path.
func ParseResultPath(s string) (*ResultPath, error) {
	p := RootPath()
	for len(s) > 0 {
		switch s[0] {
		case '/':
			s = s[1:]
			end := strings.IndexAny(s, "/[")
			if end < 0 {
				end = len(s)
			}
			if end == 0 {
				return nil, fmt.Errorf("empty path segment")
			}
			p = p.Segment(s[:end])
			s = s[end:]
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated index in path")
			}
			i, err := strconv.Atoi(s[1:end])
			if err != nil {
				return nil, fmt.Errorf("invalid index in path: %w", err)
			}
			p = p.Index(i)
			s = s[end+1:]
		default:
			return nil, fmt.Errorf("unexpected %q in path", s[0])
		}
	}
	return p, nil
}
