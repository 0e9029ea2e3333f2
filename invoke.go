package ndep

import (
	"errors"
)

// State holds the values that a caller supplies to an injected
// function, keyed by required-state name.
type State map[string]any

// callFrame is the per-call memo table and the list of resources
// acquired so far.  It is never shared between calls.
type callFrame struct {
	values   []any
	acquired []acquisition
}

type acquisition struct {
	step    int
	release ReleaseFunc
}

func (f *callFrame) args(bindings []int, name ParamName) []any {
	args := make([]any, len(bindings))
	for i, slot := range bindings {
		if slot == nameBinding {
			args[i] = name
			continue
		}
		args[i] = f.values[slot]
	}
	return args
}

// teardown releases every acquired resource, most recent first.
// Every release is attempted even if an earlier one fails or panics.
func (f *callFrame) teardown(steps []Step, outcome Outcome) error {
	var errs []error
	for i := len(f.acquired) - 1; i >= 0; i-- {
		a := f.acquired[i]
		step := steps[a.step]
		debugf("release %s (%s)", step.Producer.Name(), outcome)
		if err := release(a.release, outcome); err != nil {
			errs = append(errs, &ReleaseError{
				Producer: step.Producer.Name(),
				Key:      step.Key,
				Outcome:  outcome,
				Err:      err,
			})
		}
	}
	f.acquired = nil
	if len(errs) == 0 {
		return nil
	}
	return &TeardownError{Outcome: outcome, Errors: errs}
}

// release calls r.  A panic becomes an error.
func release(r ReleaseFunc, outcome Outcome) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &ReleasePanicError{Value: p}
		}
	}()
	return r(outcome)
}

// Call runs the plan.  It returns what the target function returns.
//
// Each key is computed at most once per call.  Scoped resources are
// released in reverse order of acquisition after the target returns:
// with Success if nothing failed, with Failure otherwise.  Release
// also happens if a producer or the target panics; the panic then
// continues.
func (p *Plan) Call(state State) (result any, err error) {
	frame := &callFrame{
		values: make([]any, len(p.steps)),
	}
	done := false
	defer func() {
		if done {
			return
		}
		// panic or runtime.Goexit
		r := recover()
		if terr := frame.teardown(p.steps, Failure); terr != nil {
			debugln("teardown after panic:", terr)
		}
		if r != nil {
			panic(r)
		}
	}()

	result, err = p.run(frame, state)
	done = true
	outcome := Success
	if err != nil {
		outcome = Failure
	}
	terr := frame.teardown(p.steps, outcome)
	switch {
	case terr == nil:
		return result, err
	case err == nil:
		return nil, terr
	default:
		return result, errors.Join(err, terr)
	}
}

func (p *Plan) run(frame *callFrame, state State) (any, error) {
	for i, step := range p.steps {
		switch step.Kind {
		case FromState:
			v, ok := state[step.StateName]
			if !ok {
				return nil, &MissingStateError{Name: step.StateName, Key: step.Key}
			}
			frame.values[i] = v
		case Invoke:
			args := frame.args(step.Bindings, ParamName(step.Key.Qualifier()))
			v, release, err := step.Producer.call(args)
			if err != nil {
				return nil, &ProducerError{Producer: step.Producer.Name(), Key: step.Key, Err: err}
			}
			if release != nil {
				frame.acquired = append(frame.acquired, acquisition{step: i, release: release})
			}
			frame.values[i] = v
		}
	}
	v, _, err := p.target.call(frame.args(p.bindings, ""))
	return v, err
}
