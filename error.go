package ndep

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DescribeError is returned when a function or value cannot be
// used as a producer or target.
type DescribeError struct {
	Name    string
	Type    string
	Reasons []string
}

func (e *DescribeError) Error() string {
	if e.Type == "" {
		return e.Name + ": " + strings.Join(e.Reasons, "; ")
	}
	return fmt.Sprintf("%s: could not match %s to any prototype: %s", e.Name, e.Type, strings.Join(e.Reasons, "; "))
}

// ArgumentTypeError is returned when a value handed to a described
// function is not assignable to the parameter type.  This only
// happens with State values of the wrong type since the engine
// trusts the caller.
type ArgumentTypeError struct {
	Func     string
	Position int
	Expected string
	Actual   string
}

func (e *ArgumentTypeError) Error() string {
	return fmt.Sprintf("%s: argument #%d is a %s, not a %s", e.Func, e.Position+1, e.Actual, e.Expected)
}

// ResultTypeError is returned by CallAs when the target returned
// something other than the requested type.
type ResultTypeError struct {
	Func     string
	Expected string
	Actual   string
}

func (e *ResultTypeError) Error() string {
	return fmt.Sprintf("%s returned a %s, not a %s", e.Func, e.Actual, e.Expected)
}

// UnresolvedDependencyError is returned at build time when a key
// has no producer and is not required state.
type UnresolvedDependencyError struct {
	Key      Key
	Param    string
	Consumer string
	// Path is the chain of consumer.param that led to Consumer
	Path []string
}

func (e *UnresolvedDependencyError) Error() string {
	msg := "no provider for " + e.Key.String() + " required by " + e.Consumer + "." + e.Param
	if len(e.Path) > 0 {
		msg += " (via " + strings.Join(e.Path, " -> ") + ")"
	}
	return msg
}

// CycleError is returned at build time when a key depends on itself.
// Path starts and ends with the same key.
type CycleError struct {
	Path []Key
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + keyPath(e.Path)
}

// DuplicateStateKeyError is returned when two required-state names
// would supply the same key.
type DuplicateStateKeyError struct {
	Key   Key
	Names []string
}

func (e *DuplicateStateKeyError) Error() string {
	quoted := make([]string, len(e.Names))
	for i, n := range e.Names {
		quoted[i] = strconv.Quote(n)
	}
	return "required state " + strings.Join(quoted, " and ") + " both supply " + e.Key.String()
}

// MissingStateError is returned from a call that did not supply a
// required-state value.
type MissingStateError struct {
	Name string
	Key  Key
}

func (e *MissingStateError) Error() string {
	return "missing required state " + strconv.Quote(e.Name) + " (" + e.Key.String() + ")"
}

// ProducerError wraps an error returned by a producer.
type ProducerError struct {
	Producer string
	Key      Key
	Err      error
}

func (e *ProducerError) Error() string {
	return e.Producer + " (providing " + e.Key.String() + "): " + e.Err.Error()
}

func (e *ProducerError) Unwrap() error { return e.Err }

// ReleaseError wraps an error returned while releasing a scoped
// resource.
type ReleaseError struct {
	Producer string
	Key      Key
	Outcome  Outcome
	Err      error
}

func (e *ReleaseError) Error() string {
	return "release " + e.Producer + " on " + e.Outcome.String() + ": " + e.Err.Error()
}

func (e *ReleaseError) Unwrap() error { return e.Err }

// ReleasePanicError is what a ReleaseError wraps when the release
// function panics.
type ReleasePanicError struct {
	Value any
}

func (e *ReleasePanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// TeardownError collects the release errors from one call.
type TeardownError struct {
	Outcome Outcome
	Errors  []error
}

func (e *TeardownError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "teardown: " + strings.Join(msgs, "; ")
}

func (e *TeardownError) Unwrap() []error { return e.Errors }

type detailedError struct {
	err     error
	details string
}

func (de *detailedError) Error() string {
	return de.err.Error()
}

func (de *detailedError) Unwrap() error {
	return de.err
}

// DetailedError transforms errors into strings.  If the error
// was returned by Inject (or something that called Inject) then
// it includes a trace of the plan building that failed.
func DetailedError(err error) string {
	var de *detailedError
	if errors.As(err, &de) {
		dups := duplicateTypes()
		if dups != "" {
			return err.Error() + "\n\n" + de.details +
				"\n\nWarning: the following type names refer to more than one type:\n" +
				dups
		}
		return err.Error() + "\n\n" + de.details
	}
	return err.Error()
}
