package ndep

import (
	"fmt"
	"reflect"
	"strings"
)

// Outcome is passed to the release function of a scoped
// resource.  It tells the resource if the call that
// acquired it succeeded.
type Outcome int

const (
	// Success means the target function and every producer returned
	// without error: commit
	Success Outcome = iota
	// Failure means something returned an error or panicked: rollback
	Failure
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

// ReleaseFunc is the second phase of a scoped producer.  It is
// invoked once per successful acquisition after the target
// function returns.
type ReleaseFunc func(Outcome) error

// Resource can be implemented by produced values.  Producers
// whose output type implements Resource are scoped: the value's
// Release method is invoked after the target function returns.
type Resource interface {
	Release(Outcome) error
}

// ParamName can be used as a parameter type by a producer.  Such
// producers are parameterized: they receive the name of the
// parameter that consumes their output and their output is
// keyed by that name.  For example:
//
//	func getHeader(name ndep.ParamName, h http.Header) Header {
//		return Header(h.Get(string(name)))
//	}
//
// provides a different Header for each parameter name that asks
// for a Header.
type ParamName string

var (
	paramNameKey = KeyOf[ParamName]()
	resourceType = reflect.TypeOf((*Resource)(nil)).Elem()
)

// Param is a named, keyed parameter of a producer or target.
type Param struct {
	Name string
	Key  Key
}

func (p Param) String() string {
	return p.Name + " " + p.Key.String()
}

type callable func(args []any) (value any, release ReleaseFunc, err error)

// Producer describes a function that yields the value for one Key.
// Producers are created with Describe, MakeProducer, MakeScopedProducer
// or, for target functions, DescribeTarget and MakeTarget.  Once created
// a Producer is immutable.
type Producer struct {
	name          string
	produces      Key
	params        []Param
	scoped        bool
	parameterized bool
	target        bool
	call          callable
}

// MakeProducer creates a Producer without reflection.  The function is
// called with the resolved arguments in the same order as params.
func MakeProducer(name string, produces Key, params []Param, fn func(args []any) (any, error)) *Producer {
	return newProducer(name, produces, params, false, func(args []any) (any, ReleaseFunc, error) {
		v, err := fn(args)
		return v, nil, err
	})
}

// MakeScopedProducer creates a Producer for a scoped resource without
// reflection.  If fn returns a nil ReleaseFunc, nothing is released.
func MakeScopedProducer(name string, produces Key, params []Param, fn func(args []any) (any, ReleaseFunc, error)) *Producer {
	return newProducer(name, produces, params, true, fn)
}

// MakeTarget creates a description of a target function without
// reflection.  The value returned by fn is the value returned
// from Function.Call.
func MakeTarget(name string, params []Param, fn func(args []any) (any, error)) *Producer {
	p := MakeProducer(name, Key{}, params, fn)
	p.target = true
	return p
}

func newProducer(name string, produces Key, params []Param, scoped bool, fn callable) *Producer {
	p := &Producer{
		name:     name,
		produces: produces.Base(),
		params:   append([]Param(nil), params...),
		scoped:   scoped,
		call:     fn,
	}
	for _, param := range p.params {
		if param.Key == paramNameKey {
			p.parameterized = true
		}
	}
	return p
}

// Name is used in plans and error messages
func (p *Producer) Name() string { return p.name }

// Produces returns the key that this producer provides.  It is
// the zero Key for targets.
func (p *Producer) Produces() Key { return p.produces }

// Params returns a copy of the producer's parameters.
func (p *Producer) Params() []Param { return append([]Param(nil), p.params...) }

// Scoped is true for producers that acquire a resource that must be
// released after the call completes.
func (p *Producer) Scoped() bool { return p.scoped }

// Parameterized is true for producers that take a ParamName
func (p *Producer) Parameterized() bool { return p.parameterized }

// IsTarget is true for descriptions of target functions
func (p *Producer) IsTarget() bool { return p.target }

func (p *Producer) String() string {
	params := make([]string, len(p.params))
	for i, param := range p.params {
		params[i] = param.String()
	}
	s := fmt.Sprintf("%s(%s)", p.name, strings.Join(params, ", "))
	if !p.target {
		s += " " + p.produces.String()
	}
	if p.scoped {
		s += " [scoped]"
	}
	return s
}
