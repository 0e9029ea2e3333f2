/*
Package nhttp binds injected functions to HTTP routes.

Each request supplies three values of required state: the
*http.Request, the http.ResponseWriter, and the gorilla/mux route
variables.  Everything else an endpoint needs comes from providers:

	inj := ndep.MustNewInjector("api")
	nhttp.MustInstall(inj)
	svc := nhttp.NewService(inj, nhttp.WithLogger(logger))
	svc.MustHandle("/users/{id}", func(id nhttp.URLArg, verbose nhttp.QueryParam) (any, error) {
		...
	}, "id", "verbose").Methods("GET")
	http.ListenAndServe(":8080", svc)

Header, QueryParam, and URLArg are parameterized: the name of the
parameter that consumes them is the header, query parameter, or route
variable that they read.
*/
package nhttp

import (
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/muir/ndep"
)

// Names of the required state that Install declares
const (
	StateRequest = "request"
	StateWriter  = "writer"
	StateURLVars = "urlVars"
)

// Method is the request method
type Method string

// Path is the request URL path
type Path string

// Headers are all of the request headers
type Headers http.Header

// Header is the value of the request header named by the parameter
// that consumes it
type Header string

// QueryParams are all of the URL query parameters
type QueryParams url.Values

// QueryParam is the first value of the query parameter named by the
// parameter that consumes it
type QueryParam string

// URLVars are the gorilla/mux route variables
type URLVars map[string]string

// URLArg is the route variable named by the parameter that consumes
// it.  A missing route variable is a 404.
type URLArg string

// Body is the request body
type Body []byte

// MaxBodySize is the largest request body that will be read.
// Larger bodies are rejected with 413.
var MaxBodySize int64 = 10 << 20

// Install declares the required state and registers the providers
// of this package.
func Install(inj *ndep.Injector) error {
	err := inj.RequireState(map[string]ndep.Key{
		StateRequest: ndep.KeyOf[*http.Request](),
		StateWriter:  ndep.KeyOf[http.ResponseWriter](),
		StateURLVars: ndep.KeyOf[URLVars](),
	})
	if err != nil {
		return errors.Wrap(err, "nhttp install")
	}
	return errors.Wrap(inj.Provide(
		getMethod,
		getPath,
		getHeaders,
		getHeader,
		getQueryParams,
		getQueryParam,
		getURLArg,
		readBody,
	), "nhttp install")
}

// MustInstall calls Install and panics on error
func MustInstall(inj *ndep.Injector) *ndep.Injector {
	if err := Install(inj); err != nil {
		panic(err)
	}
	return inj
}

func getMethod(r *http.Request) Method { return Method(r.Method) }

func getPath(r *http.Request) Path { return Path(r.URL.Path) }

func getHeaders(r *http.Request) Headers { return Headers(r.Header) }

func getHeader(name ndep.ParamName, r *http.Request) Header {
	return Header(r.Header.Get(string(name)))
}

func getQueryParams(r *http.Request) QueryParams { return QueryParams(r.URL.Query()) }

func getQueryParam(name ndep.ParamName, q QueryParams) QueryParam {
	return QueryParam(url.Values(q).Get(string(name)))
}

func getURLArg(name ndep.ParamName, vars URLVars) (URLArg, error) {
	v, ok := vars[string(name)]
	if !ok {
		return "", NotFound(errors.Errorf("no route variable %q", string(name)))
	}
	return URLArg(v), nil
}

func readBody(r *http.Request) (Body, error) {
	if r.Body == nil {
		return nil, nil
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		return nil, BadRequest(errors.Wrap(err, "read body"))
	}
	if int64(len(b)) > MaxBodySize {
		return nil, ReturnCode(errors.Errorf("body is larger than %d bytes", MaxBodySize), http.StatusRequestEntityTooLarge)
	}
	return Body(b), nil
}
