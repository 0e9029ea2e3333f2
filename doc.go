// Obligatory // comment

/*

Package ndep resolves the parameters of a function by type.  Given
a target function, it finds a registered producer for each parameter
type, recursively satisfies the producers' own parameters, and calls
everything in a valid order.

Providers and targets

Providers are functions (or literal values) that produce a value of
one type.  A target is the function you actually want to call:

	type Settings struct{ DSN string }
	type Engine struct{ dsn string }
	type Session struct{ engine *Engine }

	func createEngine(s Settings) *Engine { return &Engine{dsn: s.DSN} }

	func createSession(e *Engine) (*Session, ndep.ReleaseFunc) {
		s := &Session{engine: e}
		return s, func(o ndep.Outcome) error {
			if o == ndep.Success {
				return s.commit()
			}
			return s.rollback()
		}
	}

	func listUsers(s *Session) ([]string, error) { ... }

	func main() {
		inj := ndep.MustNewInjector("main")
		inj.MustProvide(createEngine, createSession)
		_ = inj.RequireState(map[string]ndep.Key{
			"settings": ndep.KeyOf[Settings](),
		})
		f := inj.MustInject(listUsers)
		users, err := ndep.CallAs[[]string](f, ndep.State{
			"settings": Settings{DSN: "memory"},
		})
		...
	}

Inject builds a plan once.  Each call of the resulting Function runs
the plan with a fresh set of values: every producer is called at most
once per call and its value is shared by everything in that call that
needs it.

Keys

Values are distinguished by their type.  If you need three different
strings, define three different types:

	type FirstName string
	type LastName string
	type FullName string

Keys match exactly: a producer of *bytes.Buffer does not satisfy a
parameter of io.Reader.

Producer shapes

Describe accepts these function shapes:

	func(args...) T
	func(args...) (T, error)
	func(args...) (T, ndep.ReleaseFunc)
	func(args...) (T, ndep.ReleaseFunc, error)

A producer that returns a ReleaseFunc is scoped.  Its release function
is called after the target returns, most recently acquired first, with
Success if the call succeeded and Failure if anything returned an error
or panicked.  A produced value that implements Resource is also scoped.

Anything that is not a function is a literal value and produces itself.

Producers can be described without reflection using MakeProducer,
MakeScopedProducer, and MakeTarget.

Required state

Some values can only come from the caller: an *http.Request or a
*testing.T.  Declaring required state gives such a value a name:

	_ = inj.RequireState(map[string]ndep.Key{
		"request": ndep.KeyOf[*http.Request](),
	})

Callers then supply it with every call:

	f.Call(ndep.State{"request": r})

Required state takes precedence over a producer for the same type.

Parameterized producers

A producer that takes a ParamName receives the name of the parameter
that consumes its output.  This allows one producer to provide many
distinct values of the same type:

	type Header string

	func getHeader(name ndep.ParamName, r *http.Request) Header {
		return Header(r.Header.Get(string(name)))
	}

	func handler(userAgent, accept Header) { ... }

	f := inj.MustInject(handler, "User-Agent", "Accept")

Injectors

An Injector is an independent namespace of providers and required
state.  Default is the process-wide Injector used by the package-level
functions (Provide, Inject, Run, ...).  Tests and libraries should
create their own with NewInjector.

Errors

Inject fails with *UnresolvedDependencyError if a type has no producer
and with *CycleError if a type depends on itself.  DetailedError
renders such an error with a trace of the plan building:

	f, err := inj.Inject(handler)
	if err != nil {
		log.Fatal(ndep.DetailedError(err))
	}

Plans can be printed: Function.String() renders the plan as
pseudo-code and Plan.DOT() renders it for Graphviz.

*/
package ndep
