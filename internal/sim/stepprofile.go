package sim

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// StepProfile is an immutable value object pairing a step function with
// positional and keyword arguments. Every state in the history tree is
// tagged with the profile that produced it, and crunchers key their working
// state on profile identity, so equal profiles are interned: constructing a
// profile equal to an existing one returns the existing instance.
type StepProfile struct {
	step   *Step
	args   []any
	kwargs map[string]any
	key    string
}

var (
	internMu sync.Mutex
	interned = make(map[string]*StepProfile)
)

// NewStepProfile creates (or returns the interned) step profile for the
// given step and arguments. The args and kwargs are copied; later mutation
// of the caller's slices or maps does not affect the profile.
func NewStepProfile(step *Step, args []any, kwargs map[string]any) *StepProfile {
	if step == nil {
		panic("sim: step profile requires a step")
	}

	argsCopy := make([]any, len(args))
	copy(argsCopy, args)
	kwargsCopy := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		kwargsCopy[k] = v
	}

	key := canonicalKey(step, argsCopy, kwargsCopy)

	internMu.Lock()
	defer internMu.Unlock()
	if existing, ok := interned[key]; ok {
		return existing
	}
	profile := &StepProfile{
		step:   step,
		args:   argsCopy,
		kwargs: kwargsCopy,
		key:    key,
	}
	interned[key] = profile
	return profile
}

// CopyStepProfile builds a profile from an existing one. Because profiles
// are interned this returns the original instance; it exists so callers
// holding a profile of unknown provenance can normalize it.
func CopyStepProfile(p *StepProfile) *StepProfile {
	return NewStepProfile(p.step, p.args, p.kwargs)
}

// canonicalKey builds a deterministic textual form of (step, args, kwargs).
// Keyword arguments are sorted by key so map iteration order cannot produce
// distinct keys for equal profiles.
func canonicalKey(step *Step, args []any, kwargs map[string]any) string {
	var b strings.Builder
	b.WriteString(step.QualifiedName())
	b.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%#v", arg)
	}
	if len(kwargs) > 0 {
		keys := make([]string, 0, len(kwargs))
		for k := range kwargs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if b.Len() > len(step.QualifiedName())+1 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%#v", k, kwargs[k])
		}
	}
	b.WriteByte(')')
	return b.String()
}

// Step returns the profile's step function.
func (p *StepProfile) Step() *Step { return p.step }

// Args returns a copy of the positional arguments.
func (p *StepProfile) Args() []any {
	out := make([]any, len(p.args))
	copy(out, p.args)
	return out
}

// Kwargs returns a copy of the keyword arguments.
func (p *StepProfile) Kwargs() map[string]any {
	out := make(map[string]any, len(p.kwargs))
	for k, v := range p.kwargs {
		out[k] = v
	}
	return out
}

// Equal reports whether two profiles denote the same step with the same
// arguments. Interning makes this a pointer comparison in practice, but a
// profile that somehow escaped interning still compares correctly.
func (p *StepProfile) Equal(o *StepProfile) bool {
	if p == o {
		return true
	}
	if p == nil || o == nil {
		return false
	}
	return p.key == o.key
}

// String returns a readable form, e.g. `walk.drift(0.5, bias=0.1)`.
func (p *StepProfile) String() string { return p.key }
