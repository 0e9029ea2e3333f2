package ndep

// Reflection happens here and only here.  Functions are examined
// once and turned into *Producer descriptors; plan building and
// invocation work from the descriptors.

import (
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"unicode"
)

var (
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
	releaseFuncType = reflect.TypeOf(ReleaseFunc(nil))
	paramNameType   = reflect.TypeOf(ParamName(""))
)

type testArgs struct {
	t     reflect.Type
	v     reflect.Value
	isNil bool
}

type predicateType struct {
	message string
	test    func(a testArgs) bool
}

type predicates []predicateType

type characterization struct {
	name  string
	tests predicates
	build func(a testArgs, name string, params []Param) *Producer
}

type typeRegistry []characterization

// predicate tests a function.  The message is used when the function
// fails that test so the message should be the opposite of what the
// function does.
func predicate(message string, test func(a testArgs) bool) predicateType {
	return predicateType{
		message: message,
		test:    test,
	}
}

func numOut(n int) predicateType {
	return predicate("does not return exactly "+strconv.Itoa(n)+" values", func(a testArgs) bool {
		return a.t.NumOut() == n
	})
}

func outIs(i int, t reflect.Type, what string) predicateType {
	return predicate("return value #"+strconv.Itoa(i+1)+" is not "+what, func(a testArgs) bool {
		return a.t.NumOut() > i && a.t.Out(i) == t
	})
}

var (
	notNil       = predicate("is nil", func(a testArgs) bool { return !a.isNil })
	notFunc      = predicate("is a function", func(a testArgs) bool { return a.t.Kind() != reflect.Func })
	isFunc       = predicate("is not a function", func(a testArgs) bool { return a.t.Kind() == reflect.Func })
	notVariadic  = predicate("is variadic", func(a testArgs) bool { return !a.t.IsVariadic() })
	firstIsValue = predicate("return value #1 is error, ReleaseFunc, or ParamName", func(a testArgs) bool {
		if a.t.NumOut() == 0 {
			return false
		}
		out := a.t.Out(0)
		return out != errorType && out != releaseFuncType && out != paramNameType
	})
	noParamName = predicate("takes a ParamName", func(a testArgs) bool {
		for i := 0; i < a.t.NumIn(); i++ {
			if a.t.In(i) == paramNameType {
				return false
			}
		}
		return true
	})
	literalNotSpecial = predicate("is an error, ReleaseFunc, or ParamName", func(a testArgs) bool {
		return a.t != releaseFuncType && a.t != paramNameType && !a.t.Implements(errorType)
	})
)

var producerRegistry = typeRegistry{
	{
		name: "literal value",
		tests: predicates{
			notFunc,
			literalNotSpecial,
		},
		build: func(a testArgs, name string, _ []Param) *Producer {
			value := a.v.Interface()
			return newProducer(name, KeyFor(a.t), nil, false, func([]any) (any, ReleaseFunc, error) {
				return value, nil, nil
			})
		},
	},

	{
		name: "fallible scoped producer",
		tests: predicates{
			isFunc,
			notNil,
			notVariadic,
			numOut(3),
			firstIsValue,
			outIs(1, releaseFuncType, "ReleaseFunc"),
			outIs(2, errorType, "error"),
		},
		build: func(a testArgs, name string, params []Param) *Producer {
			call := reflectCall(a.v, name)
			return newProducer(name, KeyFor(a.t.Out(0)), params, true, func(args []any) (any, ReleaseFunc, error) {
				out, err := call(args)
				if err != nil {
					return nil, nil, err
				}
				if e := out[2].Interface(); e != nil {
					return nil, nil, e.(error)
				}
				return valueOf(out[0]), releaseOf(out[1]), nil
			})
		},
	},

	{
		name: "scoped producer",
		tests: predicates{
			isFunc,
			notNil,
			notVariadic,
			numOut(2),
			firstIsValue,
			outIs(1, releaseFuncType, "ReleaseFunc"),
		},
		build: func(a testArgs, name string, params []Param) *Producer {
			call := reflectCall(a.v, name)
			return newProducer(name, KeyFor(a.t.Out(0)), params, true, func(args []any) (any, ReleaseFunc, error) {
				out, err := call(args)
				if err != nil {
					return nil, nil, err
				}
				return valueOf(out[0]), releaseOf(out[1]), nil
			})
		},
	},

	{
		name: "fallible producer",
		tests: predicates{
			isFunc,
			notNil,
			notVariadic,
			numOut(2),
			firstIsValue,
			outIs(1, errorType, "error"),
		},
		build: func(a testArgs, name string, params []Param) *Producer {
			call := reflectCall(a.v, name)
			if a.t.Out(0).Implements(resourceType) {
				return newProducer(name, KeyFor(a.t.Out(0)), params, true, func(args []any) (any, ReleaseFunc, error) {
					out, err := call(args)
					if err != nil {
						return nil, nil, err
					}
					if e := out[1].Interface(); e != nil {
						return nil, nil, e.(error)
					}
					return resourceOf(out[0])
				})
			}
			return newProducer(name, KeyFor(a.t.Out(0)), params, false, func(args []any) (any, ReleaseFunc, error) {
				out, err := call(args)
				if err != nil {
					return nil, nil, err
				}
				if e := out[1].Interface(); e != nil {
					return nil, nil, e.(error)
				}
				return valueOf(out[0]), nil, nil
			})
		},
	},

	{
		name: "producer",
		tests: predicates{
			isFunc,
			notNil,
			notVariadic,
			numOut(1),
			firstIsValue,
		},
		build: func(a testArgs, name string, params []Param) *Producer {
			call := reflectCall(a.v, name)
			if a.t.Out(0).Implements(resourceType) {
				return newProducer(name, KeyFor(a.t.Out(0)), params, true, func(args []any) (any, ReleaseFunc, error) {
					out, err := call(args)
					if err != nil {
						return nil, nil, err
					}
					return resourceOf(out[0])
				})
			}
			return newProducer(name, KeyFor(a.t.Out(0)), params, false, func(args []any) (any, ReleaseFunc, error) {
				out, err := call(args)
				if err != nil {
					return nil, nil, err
				}
				return valueOf(out[0]), nil, nil
			})
		},
	},
}

var targetRegistry = typeRegistry{
	{
		name: "target returning a value and error",
		tests: predicates{
			isFunc,
			notNil,
			notVariadic,
			noParamName,
			numOut(2),
			outIs(1, errorType, "error"),
		},
		build: func(a testArgs, name string, params []Param) *Producer {
			call := reflectCall(a.v, name)
			return MakeTarget(name, params, func(args []any) (any, error) {
				out, err := call(args)
				if err != nil {
					return nil, err
				}
				if e := out[1].Interface(); e != nil {
					return valueOf(out[0]), e.(error)
				}
				return valueOf(out[0]), nil
			})
		},
	},

	{
		name: "target returning error",
		tests: predicates{
			isFunc,
			notNil,
			notVariadic,
			noParamName,
			numOut(1),
			outIs(0, errorType, "error"),
		},
		build: func(a testArgs, name string, params []Param) *Producer {
			call := reflectCall(a.v, name)
			return MakeTarget(name, params, func(args []any) (any, error) {
				out, err := call(args)
				if err != nil {
					return nil, err
				}
				if e := out[0].Interface(); e != nil {
					return nil, e.(error)
				}
				return nil, nil
			})
		},
	},

	{
		name: "target returning a value",
		tests: predicates{
			isFunc,
			notNil,
			notVariadic,
			noParamName,
			numOut(1),
		},
		build: func(a testArgs, name string, params []Param) *Producer {
			call := reflectCall(a.v, name)
			return MakeTarget(name, params, func(args []any) (any, error) {
				out, err := call(args)
				if err != nil {
					return nil, err
				}
				return valueOf(out[0]), nil
			})
		},
	},

	{
		name: "target returning nothing",
		tests: predicates{
			isFunc,
			notNil,
			notVariadic,
			noParamName,
			numOut(0),
		},
		build: func(a testArgs, name string, params []Param) *Producer {
			call := reflectCall(a.v, name)
			return MakeTarget(name, params, func(args []any) (any, error) {
				_, err := call(args)
				return nil, err
			})
		},
	},
}

// Describe examines a producer function (or a literal value) and
// returns its descriptor.  If name is empty, the function name is
// used.  Parameter names are assigned positionally from paramNames;
// parameters without an explicit name are named after their type.
//
// The accepted function shapes are:
//
//	func(args...) T
//	func(args...) (T, error)
//	func(args...) (T, ndep.ReleaseFunc)
//	func(args...) (T, ndep.ReleaseFunc, error)
//
// A T that implements Resource makes the first two shapes scoped.
// Any other value is a literal that produces itself.
func Describe(name string, fn any, paramNames ...string) (*Producer, error) {
	if p, ok := fn.(*Producer); ok {
		return p, nil
	}
	return producerRegistry.describe(name, fn, paramNames)
}

// MustDescribe calls Describe and panics on error
func MustDescribe(name string, fn any, paramNames ...string) *Producer {
	p, err := Describe(name, fn, paramNames...)
	if err != nil {
		panic(err)
	}
	return p
}

// DescribeTarget examines a target function.  Targets may return
// nothing, a value, an error, or a value and an error.
func DescribeTarget(name string, fn any, paramNames ...string) (*Producer, error) {
	if p, ok := fn.(*Producer); ok {
		if !p.target {
			return nil, &DescribeError{Name: p.name, Reasons: []string{"is a producer, not a target"}}
		}
		return p, nil
	}
	return targetRegistry.describe(name, fn, paramNames)
}

func (reg typeRegistry) describe(name string, fn any, paramNames []string) (*Producer, error) {
	if fn == nil {
		return nil, &DescribeError{Name: name, Reasons: []string{"is nil"}}
	}
	v := reflect.ValueOf(fn)
	a := testArgs{
		t: v.Type(),
		v: v,
	}
	// nolint:exhaustive
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		a.isNil = v.IsNil()
	}
	if name == "" {
		name = funcName(v)
	}

	var rejectReasons []string
Match:
	for _, match := range reg {
		for _, predicate := range match.tests {
			if !predicate.test(a) {
				rejectReasons = append(rejectReasons, match.name+": "+predicate.message)
				continue Match
			}
		}
		var params []Param
		if a.t.Kind() == reflect.Func {
			var err error
			params, err = paramsOf(name, a.t, paramNames)
			if err != nil {
				return nil, err
			}
		}
		debugf("describe %s as %s", name, match.name)
		return match.build(a, name, params), nil
	}
	return nil, &DescribeError{Name: name, Type: a.t.String(), Reasons: rejectReasons}
}

func paramsOf(name string, t reflect.Type, names []string) ([]Param, error) {
	if len(names) > t.NumIn() {
		return nil, &DescribeError{
			Name:    name,
			Type:    t.String(),
			Reasons: []string{"has " + strconv.Itoa(t.NumIn()) + " parameters but " + strconv.Itoa(len(names)) + " names were given"},
		}
	}
	params := make([]Param, t.NumIn())
	used := make(map[string]int)
	for i := range params {
		in := t.In(i)
		pn := ""
		if i < len(names) {
			pn = names[i]
		}
		if pn == "" {
			pn = defaultParamName(in)
		}
		used[pn]++
		if used[pn] > 1 {
			pn += strconv.Itoa(used[pn])
		}
		params[i] = Param{Name: pn, Key: KeyFor(in)}
	}
	return params, nil
}

// defaultParamName derives a parameter name from its type:
// *sql.Tx becomes "tx" and http.Header becomes "header".
func defaultParamName(t reflect.Type) string {
	for t.Name() == "" && (t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	n := t.Name()
	if n == "" {
		return "arg"
	}
	if i := strings.IndexByte(n, '['); i > 0 {
		n = n[:i]
	}
	r := []rune(n)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func funcName(v reflect.Value) string {
	if v.Kind() != reflect.Func {
		return v.Type().String()
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return v.Type().String()
	}
	n := f.Name()
	if i := strings.LastIndexByte(n, '/'); i >= 0 {
		n = n[i+1:]
	}
	if i := strings.IndexByte(n, '.'); i >= 0 {
		n = n[i+1:]
	}
	return strings.TrimSuffix(n, "-fm")
}

// reflectCall converts arguments to reflect.Values that match the
// function's parameter types and calls it.  Mismatched arguments
// are reported as *ArgumentTypeError rather than letting
// reflect.Value.Call panic.
func reflectCall(fn reflect.Value, name string) func([]any) ([]reflect.Value, error) {
	t := fn.Type()
	in := make([]reflect.Type, t.NumIn())
	for i := range in {
		in[i] = t.In(i)
	}
	return func(args []any) ([]reflect.Value, error) {
		values := make([]reflect.Value, len(in))
		for i, arg := range args {
			if arg == nil {
				values[i] = reflect.Zero(in[i])
				continue
			}
			v := reflect.ValueOf(arg)
			if !v.Type().AssignableTo(in[i]) {
				return nil, &ArgumentTypeError{
					Func:     name,
					Position: i,
					Expected: in[i].String(),
					Actual:   v.Type().String(),
				}
			}
			values[i] = v
		}
		return fn.Call(values), nil
	}
}

// valueOf unwraps a returned value.  A nil interface becomes a nil
// any, which is handed on as reflect.Zero of the consumer's type.
func valueOf(v reflect.Value) any {
	// nolint:exhaustive
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}

func releaseOf(v reflect.Value) ReleaseFunc {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(ReleaseFunc)
}

func resourceOf(v reflect.Value) (any, ReleaseFunc, error) {
	value := valueOf(v)
	if value == nil || (v.Kind() == reflect.Ptr && v.IsNil()) {
		return value, nil, nil
	}
	r := value.(Resource)
	return value, r.Release, nil
}
