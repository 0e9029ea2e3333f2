package ndep

import (
	"errors"
	"fmt"
)

// Injector is an independent namespace of providers and required
// state.  Providers registered on one Injector are not visible from
// another.
//
// An Injector is meant to be set up first (Provide, RequireState)
// and used afterwards (Inject, Call).  It does no locking: concurrent
// registration must be synchronized by the caller.  Injected
// Functions may be called concurrently.
type Injector struct {
	name      string
	providers *ProviderRegistry
	state     *StateRegistry
}

// Option configures an Injector created by NewInjector
type Option func(*Injector) error

// WithProviders registers providers as Provide does
func WithProviders(providers ...any) Option {
	return func(inj *Injector) error {
		return inj.Provide(providers...)
	}
}

// WithRequiredState declares required state as RequireState does
func WithRequiredState(required map[string]Key) Option {
	return func(inj *Injector) error {
		return inj.state.Declare(required)
	}
}

// NewInjector creates an empty Injector and applies the options.
func NewInjector(name string, opts ...Option) (*Injector, error) {
	inj := &Injector{
		name:      name,
		providers: NewProviderRegistry(),
		state:     NewStateRegistry(),
	}
	for _, opt := range opts {
		if err := opt(inj); err != nil {
			return nil, fmt.Errorf("injector %s: %w", name, err)
		}
	}
	return inj, nil
}

// MustNewInjector calls NewInjector and panics on error
func MustNewInjector(name string, opts ...Option) *Injector {
	inj, err := NewInjector(name, opts...)
	if err != nil {
		panic(err)
	}
	return inj
}

// Name returns the name given to NewInjector
func (inj *Injector) Name() string { return inj.name }

func (inj *Injector) String() string { return "injector " + inj.name }

// Provide registers producers.  Each provider may be a *Producer,
// a function (see Describe for the accepted shapes), or a literal
// value.  A later provider for the same key replaces an earlier one.
// Either all of the providers are registered or none are.
func (inj *Injector) Provide(providers ...any) error {
	described := make([]*Producer, len(providers))
	for i, fn := range providers {
		p, err := Describe("", fn)
		if err != nil {
			return err
		}
		described[i] = p
	}
	for _, p := range described {
		inj.providers.Register(p)
	}
	return nil
}

// MustProvide calls Provide and panics on error
func (inj *Injector) MustProvide(providers ...any) *Injector {
	if err := inj.Provide(providers...); err != nil {
		panic(err)
	}
	return inj
}

// Register adds one producer
func (inj *Injector) Register(p *Producer) *Injector {
	inj.providers.Register(p)
	return inj
}

// RequireState merges required state: callers of injected functions
// must supply a value for each name and that value is used wherever
// its key is needed.
func (inj *Injector) RequireState(required map[string]Key) error {
	return inj.state.Declare(required)
}

// SetRequiredState replaces all required state
func (inj *Injector) SetRequiredState(required map[string]Key) error {
	return inj.state.Set(required)
}

// Providers gives direct access to the provider registry
func (inj *Injector) Providers() *ProviderRegistry { return inj.providers }

// RequiredState gives direct access to the required-state registry
func (inj *Injector) RequiredState() *StateRegistry { return inj.state }

// SetProviders replaces the provider registry
func (inj *Injector) SetProviders(providers *ProviderRegistry) {
	inj.providers = providers
}

// Inject describes a target function and builds its plan.  The plan
// is built once, now: registering or overriding providers afterwards
// does not change the returned Function.
//
// Parameter names are assigned positionally from paramNames; unnamed
// parameters are named after their type.  Names matter to
// parameterized producers (see ParamName) and to error messages.
func (inj *Injector) Inject(target any, paramNames ...string) (*Function, error) {
	t, err := DescribeTarget("", target, paramNames...)
	if err != nil {
		return nil, err
	}
	return inj.InjectTarget(t)
}

// MustInject calls Inject and panics on error.  The panic includes
// the detailed error.
func (inj *Injector) MustInject(target any, paramNames ...string) *Function {
	f, err := inj.Inject(target, paramNames...)
	if err != nil {
		panic(DetailedError(err))
	}
	return f
}

// InjectTarget builds the plan for an already-described target
func (inj *Injector) InjectTarget(target *Producer) (*Function, error) {
	if !target.IsTarget() {
		return nil, &DescribeError{Name: target.Name(), Reasons: []string{"is a producer, not a target"}}
	}
	plan, err := BuildPlan(target, inj.providers, inj.state)
	if err != nil {
		return nil, &detailedError{
			err:     fmt.Errorf("%s: inject %s: %w", inj.name, target.Name(), err),
			details: captureBuildDebugging(target, inj.providers, inj.state),
		}
	}
	return &Function{
		name: target.Name(),
		plan: plan,
	}, nil
}

// Run injects and calls a target in one step.  Nothing is saved:
// Run builds the plan every time.
func (inj *Injector) Run(target any, state State, paramNames ...string) (any, error) {
	f, err := inj.Inject(target, paramNames...)
	if err != nil {
		return nil, err
	}
	return f.Call(state)
}

// Function is an injected target function.
type Function struct {
	name string
	plan *Plan
}

// Call invokes the target with its dependencies.  It returns what
// the target returns.  See Plan.Call.
func (f *Function) Call(state State) (any, error) {
	return f.plan.Call(state)
}

// Name is the name of the target function
func (f *Function) Name() string { return f.name }

// Plan returns the plan that Call runs
func (f *Function) Plan() *Plan { return f.plan }

func (f *Function) String() string { return f.plan.String() }

// CallAs calls an injected function and converts its result to T.
// A nil result converts to the zero T.
func CallAs[T any](f *Function, state State) (T, error) {
	var zero T
	v, err := f.Call(state)
	if v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		rte := &ResultTypeError{
			Func:     f.name,
			Expected: KeyOf[T]().String(),
			Actual:   fmt.Sprintf("%T", v),
		}
		if err != nil {
			return zero, errors.Join(err, rte)
		}
		return zero, rte
	}
	return t, err
}
