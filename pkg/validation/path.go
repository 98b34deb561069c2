package validation

import (
	"strconv"
	"strings"
)

// Step is a single segment of a Path: either an object key or an array index.
type Step struct {
	key     string
	index   int
	isIndex bool
}

// Key returns the object key of the step and whether the step is a key.
func (s Step) Key() (string, bool) {
	return s.key, !s.isIndex
}

// Index returns the array index of the step and whether the step is an index.
func (s Step) Index() (int, bool) {
	return s.index, s.isIndex
}

// Path locates a value inside a descriptor tree.
// A Path is immutable: Field and Index return new paths and never modify the receiver.
type Path struct {
	steps []Step
}

// Root returns the empty path, rendered as "$".
func Root() Path {
	return Path{}
}

// PathOf builds a path from keys (string) and indices (int).
// Any other element type panics.
func PathOf(elems ...interface{}) Path {
	p := Root()
	for _, e := range elems {
		switch v := e.(type) {
		case string:
			p = p.Field(v)
		case int:
			p = p.Index(v)
		default:
			panic("validation: path elements must be string or int")
		}
	}
	return p
}

// Field returns a new path extended by an object key.
func (p Path) Field(name string) Path {
	return p.with(Step{key: name})
}

// Index returns a new path extended by an array index.
func (p Path) Index(i int) Path {
	return p.with(Step{index: i, isIndex: true})
}

func (p Path) with(s Step) Path {
	steps := make([]Step, len(p.steps), len(p.steps)+1)
	copy(steps, p.steps)
	return Path{steps: append(steps, s)}
}

// Steps returns a copy of the path segments.
func (p Path) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Len returns the number of steps.
func (p Path) Len() int {
	return len(p.steps)
}

// Last returns the final step of the path, or false for the root.
func (p Path) Last() (Step, bool) {
	if len(p.steps) == 0 {
		return Step{}, false
	}
	return p.steps[len(p.steps)-1], true
}

// String renders the path as "$.microservices[0].name".
func (p Path) String() string {
	var b strings.Builder
	b.WriteByte('$')
	for _, s := range p.steps {
		if s.isIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.index))
			b.WriteByte(']')
			continue
		}
		b.WriteByte('.')
		b.WriteString(s.key)
	}
	return b.String()
}

// Equal reports whether two paths have identical steps.
func (p Path) Equal(other Path) bool {
	if len(p.steps) != len(other.steps) {
		return false
	}
	for i := range p.steps {
		if p.steps[i] != other.steps[i] {
			return false
		}
	}
	return true
}
