package sim

import (
	"fmt"

	"github.com/haldane/simtree/internal/errors"
)

// Step is a named step function. Steps are registered on a Simpack and
// compared by identity; two simpacks may both define a step called "walk"
// without the profiles built from them ever comparing equal.
type Step struct {
	// Name identifies the step within its simpack.
	Name string
	// Fn computes the next state.
	Fn StepFunc

	pack string
}

// QualifiedName returns "<simpack>.<step>", unique within a process as long
// as simpack names are.
func (s *Step) QualifiedName() string {
	return s.pack + "." + s.Name
}

// Simpack describes one kind of simulation: the step functions it offers and
// the cruncher backends able to run it. The zero value is not usable; create
// simpacks with NewSimpack.
type Simpack struct {
	name        string
	steps       map[string]*Step
	order       []string
	defaultStep *Step
	backends    []string
}

// NewSimpack creates a simpack with the given ordered list of compatible
// cruncher backend names. The list may name backends that are not registered
// in this build; the project filters those out at construction time.
func NewSimpack(name string, backends ...string) *Simpack {
	return &Simpack{
		name:     name,
		steps:    make(map[string]*Step),
		backends: backends,
	}
}

// Name returns the simpack name.
func (sp *Simpack) Name() string { return sp.name }

// RegisterStep adds a named step function. The first registered step becomes
// the default. Registering the same name twice panics: step sets are static
// per simpack, so a duplicate is a programming error.
func (sp *Simpack) RegisterStep(name string, fn StepFunc) *Step {
	if _, exists := sp.steps[name]; exists {
		panic(fmt.Sprintf("sim: step %q already registered in simpack %q", name, sp.name))
	}
	step := &Step{Name: name, Fn: fn, pack: sp.name}
	sp.steps[name] = step
	sp.order = append(sp.order, name)
	if sp.defaultStep == nil {
		sp.defaultStep = step
	}
	return step
}

// Step returns the registered step with the given name.
func (sp *Simpack) Step(name string) (*Step, bool) {
	s, ok := sp.steps[name]
	return s, ok
}

// Steps returns the registered steps in registration order.
func (sp *Simpack) Steps() []*Step {
	out := make([]*Step, 0, len(sp.order))
	for _, name := range sp.order {
		out = append(out, sp.steps[name])
	}
	return out
}

// DefaultStep returns the simpack's default step function, or nil if no step
// has been registered.
func (sp *Simpack) DefaultStep() *Step { return sp.defaultStep }

// CompatibleBackends returns the ordered backend names this simpack declares
// itself compatible with.
func (sp *Simpack) CompatibleBackends() []string {
	out := make([]string, len(sp.backends))
	copy(out, sp.backends)
	return out
}

// IsStep reports whether v can be used as a step function of this simpack:
// either a *Step registered here, or the name of one. This is the classifier
// used by ParseStepProfile to tell a step argument from an ordinary first
// positional argument.
func (sp *Simpack) IsStep(v any) bool {
	switch s := v.(type) {
	case *Step:
		return s != nil && sp.steps[s.Name] == s
	case string:
		_, ok := sp.steps[s]
		return ok
	default:
		return false
	}
}

// stepOf resolves v (a *Step or a step name) to a registered step.
func (sp *Simpack) stepOf(v any) (*Step, error) {
	switch s := v.(type) {
	case *Step:
		if s != nil && sp.steps[s.Name] == s {
			return s, nil
		}
		return nil, fmt.Errorf("step %q is not part of simpack %q: %w", stepName(s), sp.name, errors.ErrUnknownStep)
	case string:
		if step, ok := sp.steps[s]; ok {
			return step, nil
		}
		return nil, fmt.Errorf("step %q is not part of simpack %q: %w", s, sp.name, errors.ErrUnknownStep)
	default:
		return nil, fmt.Errorf("%T is not a step: %w", v, errors.ErrUnknownStep)
	}
}

func stepName(s *Step) string {
	if s == nil {
		return "<nil>"
	}
	return s.Name
}

// ParseStepProfile resolves loosely-typed user arguments into a step profile.
//
// Most of the time there is one default step function that should be used
// when the caller does not name one, but callers may still specify a step
// explicitly. Accepted forms, checked in order:
//
//   - kwargs["step_function"]: a *Step or step name; remaining args/kwargs
//     become the profile's arguments.
//   - kwargs["step_profile"]: an existing *StepProfile (nil means "give me
//     the default profile"). Anything else is a ConfigurationError.
//   - args[0] is a *StepProfile: returned as-is.
//   - args[0] passes the step classifier: used as the step, with the
//     remaining args as profile arguments.
//   - otherwise: the default step with all args/kwargs as arguments.
//
// A nil defaultStep means the simpack's own default.
func (sp *Simpack) ParseStepProfile(defaultStep *Step, args []any, kwargs map[string]any) (*StepProfile, error) {
	if defaultStep == nil {
		defaultStep = sp.defaultStep
	}

	if v, ok := kwargs["step_function"]; ok {
		step, err := sp.stepOf(v)
		if err != nil {
			return nil, err
		}
		return NewStepProfile(step, args, withoutKey(kwargs, "step_function")), nil
	}

	if v, ok := kwargs["step_profile"]; ok {
		if v == nil {
			return NewStepProfile(defaultStep, nil, nil), nil
		}
		profile, ok := v.(*StepProfile)
		if !ok {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("%T passed as step_profile", v), errors.ErrNotAStepProfile)
		}
		return profile, nil
	}

	if len(args) > 0 {
		if profile, ok := args[0].(*StepProfile); ok {
			return profile, nil
		}
		if sp.IsStep(args[0]) {
			step, err := sp.stepOf(args[0])
			if err != nil {
				return nil, err
			}
			return NewStepProfile(step, args[1:], kwargs), nil
		}
	}

	return NewStepProfile(defaultStep, args, kwargs), nil
}

func withoutKey(m map[string]any, key string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}
