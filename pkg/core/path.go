package core

import "strings"

// PathStep is one hop in a load path: traversal of a named relationship
// into a target mapped type.
type PathStep struct {
	Relationship string
	Target       string
}

// LoadPath is the ordered route by which a nested object was reached from
// the query root. The zero value is the root path. Values are immutable;
// Child returns a new path.
type LoadPath struct {
	steps []PathStep
}

// NewLoadPath builds a path from explicit steps.
func NewLoadPath(steps ...PathStep) LoadPath {
	return LoadPath{steps: steps}
}

// Child extends the path by one relationship hop.
func (p LoadPath) Child(relationship, target string) LoadPath {
	steps := make([]PathStep, len(p.steps), len(p.steps)+1)
	copy(steps, p.steps)
	return LoadPath{steps: append(steps, PathStep{Relationship: relationship, Target: target})}
}

// Append concatenates two paths.
func (p LoadPath) Append(other LoadPath) LoadPath {
	if len(p.steps) == 0 {
		return other
	}
	if len(other.steps) == 0 {
		return p
	}
	steps := make([]PathStep, 0, len(p.steps)+len(other.steps))
	steps = append(steps, p.steps...)
	steps = append(steps, other.steps...)
	return LoadPath{steps: steps}
}

// IsRoot reports whether the path has no steps.
func (p LoadPath) IsRoot() bool {
	return len(p.steps) == 0
}

// Len returns the number of steps.
func (p LoadPath) Len() int {
	return len(p.steps)
}

// Key returns a canonical encoding usable as a map key.
func (p LoadPath) Key() string {
	if len(p.steps) == 0 {
		return ""
	}
	var b strings.Builder
	for i, s := range p.steps {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(s.Relationship)
		b.WriteByte(':')
		b.WriteString(s.Target)
	}
	return b.String()
}

// Equal reports step-wise equality.
func (p LoadPath) Equal(other LoadPath) bool {
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

// String renders the path for logs and errors.
func (p LoadPath) String() string {
	if p.IsRoot() {
		return "(root)"
	}
	return p.Key()
}
