package ndep

import (
	"strings"
)

// StepKind distinguishes the two kinds of plan steps
type StepKind int

const (
	// FromState steps take a value from the caller-supplied State
	FromState StepKind = iota
	// Invoke steps call a producer
	Invoke
)

func (k StepKind) String() string {
	if k == FromState {
		return "from-state"
	}
	return "invoke"
}

// nameBinding is used in Step.Bindings for the ParamName argument
// of a parameterized producer.
const nameBinding = -1

// Step is one element of a Plan.
type Step struct {
	Kind StepKind
	// Key is the key whose value this step computes
	Key Key
	// StateName is set for FromState steps
	StateName string
	// Producer is set for Invoke steps
	Producer *Producer
	// Bindings are the indexes of the earlier steps whose values are
	// passed to Producer, in parameter order.  A ParamName parameter
	// has a binding of -1 and receives Key.Qualifier().
	Bindings []int
}

// Plan is the ordered sequence of steps that satisfies a target
// function.  Every step appears after the steps it binds to.  A Plan
// is immutable.
type Plan struct {
	target   *Producer
	steps    []Step
	bindings []int
}

// Target returns the target description
func (p *Plan) Target() *Producer { return p.target }

// Steps returns a copy of the steps
func (p *Plan) Steps() []Step {
	steps := make([]Step, len(p.steps))
	for i, s := range p.steps {
		s.Bindings = append([]int(nil), s.Bindings...)
		steps[i] = s
	}
	return steps
}

// TargetBindings returns the steps whose values are passed to the
// target, in parameter order.
func (p *Plan) TargetBindings() []int { return append([]int(nil), p.bindings...) }

type planBuilder struct {
	providers  *ProviderRegistry
	state      *StateRegistry
	slots      map[Key]int
	inProgress map[Key]int
	path       []Key
	demand     []string
	steps      []Step
}

// BuildPlan computes the plan for a target.  It fails with
// *UnresolvedDependencyError when a key has no producer and is not
// required state, and with *CycleError when a key depends on itself.
//
// Parameters are resolved depth-first, left to right, so the plan is
// the same every time it is built from the same registries.
func BuildPlan(target *Producer, providers *ProviderRegistry, state *StateRegistry) (*Plan, error) {
	debugln("BEGIN build plan for", target.Name())
	defer debugln("END build plan for", target.Name())
	b := &planBuilder{
		providers:  providers,
		state:      state,
		slots:      make(map[Key]int),
		inProgress: make(map[Key]int),
	}
	bindings := make([]int, len(target.params))
	for i, param := range target.params {
		if param.Key == paramNameKey {
			return nil, &UnresolvedDependencyError{
				Key:      param.Key,
				Param:    param.Name,
				Consumer: target.Name(),
			}
		}
		slot, err := b.resolve(param, target.Name())
		if err != nil {
			return nil, err
		}
		bindings[i] = slot
	}
	return &Plan{
		target:   target,
		steps:    b.steps,
		bindings: bindings,
	}, nil
}

func (b *planBuilder) resolve(param Param, consumer string) (int, error) {
	k := param.Key
	if slot, ok := b.slots[k]; ok {
		debugf("%s.%s: reuse step %d for %s", consumer, param.Name, slot, k)
		return slot, nil
	}
	if name, ok := b.state.IsRequiredKey(k); ok {
		debugf("%s.%s: %s from state %q", consumer, param.Name, k, name)
		return b.add(k, Step{
			Kind:      FromState,
			Key:       k,
			StateName: name,
		}), nil
	}
	producer, ok := b.providers.Lookup(k)
	if !ok {
		debugf("%s.%s: no provider for %s", consumer, param.Name, k)
		return 0, &UnresolvedDependencyError{
			Key:      k,
			Param:    param.Name,
			Consumer: consumer,
			Path:     append([]string(nil), b.demand...),
		}
	}
	if producer.Parameterized() {
		k = k.Qualify(param.Name)
		if slot, ok := b.slots[k]; ok {
			return slot, nil
		}
	}
	if pos, ok := b.inProgress[k]; ok {
		cycle := append([]Key(nil), b.path[pos:]...)
		cycle = append(cycle, k)
		debugf("%s.%s: cycle %s", consumer, param.Name, keyPath(cycle))
		return 0, &CycleError{Path: cycle}
	}

	debugf("%s.%s: %s from %s", consumer, param.Name, k, producer.Name())
	b.inProgress[k] = len(b.path)
	b.path = append(b.path, k)
	b.demand = append(b.demand, consumer+"."+param.Name)
	bindings := make([]int, len(producer.params))
	for i, pp := range producer.params {
		if pp.Key == paramNameKey {
			bindings[i] = nameBinding
			continue
		}
		slot, err := b.resolve(pp, producer.Name())
		if err != nil {
			return 0, err
		}
		bindings[i] = slot
	}
	b.demand = b.demand[:len(b.demand)-1]
	b.path = b.path[:len(b.path)-1]
	delete(b.inProgress, k)

	return b.add(k, Step{
		Kind:     Invoke,
		Key:      k,
		Producer: producer,
		Bindings: bindings,
	}), nil
}

func (b *planBuilder) add(k Key, step Step) int {
	slot := len(b.steps)
	b.steps = append(b.steps, step)
	b.slots[k] = slot
	return slot
}

func keyPath(keys []Key) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, " -> ")
}
