package nhttp

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/muir/ndep"
	"github.com/muir/ndep/nlog"
)

// Service binds injected endpoints to a gorilla/mux router
type Service struct {
	inj         *ndep.Injector
	router      *mux.Router
	log         nlog.BasicLogger
	marshal     func(any) ([]byte, error)
	contentType string
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithLogger sets the logger used for errors and panics.  The
// default is nlog.NoLogger().
func WithLogger(log nlog.BasicLogger) ServiceOption {
	return func(s *Service) {
		s.log = nlog.OrNoLogger(log)
	}
}

// WithRouter uses an existing router instead of creating one
func WithRouter(router *mux.Router) ServiceOption {
	return func(s *Service) {
		s.router = router
	}
}

// WithEncoder replaces the JSON response encoding
func WithEncoder(contentType string, marshal func(any) ([]byte, error)) ServiceOption {
	return func(s *Service) {
		s.contentType = contentType
		s.marshal = marshal
	}
}

// NewService creates a Service.  The injector should already have
// had Install called on it.
func NewService(inj *ndep.Injector, opts ...ServiceOption) *Service {
	s := &Service{
		inj:         inj,
		router:      mux.NewRouter(),
		log:         nlog.NoLogger(),
		marshal:     json.Marshal,
		contentType: "application/json",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the underlying router
func (s *Service) Router() *mux.Router { return s.router }

// ServeHTTP serves with the underlying router
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handle injects target and binds it to path.  The returned
// *mux.Route can be further restricted with Methods(), Queries(), etc.
//
// The value returned by target is encoded as the response.  If target
// returns an error, the error text is the response and the status
// comes from GetReturnCode.  If target writes to the
// http.ResponseWriter itself, nothing is encoded.
func (s *Service) Handle(path string, target any, paramNames ...string) (*mux.Route, error) {
	f, err := s.inj.Inject(target, paramNames...)
	if err != nil {
		return nil, errors.Wrapf(err, "endpoint %s", path)
	}
	s.log.Debug("bound endpoint", map[string]any{
		"path": path,
		"plan": f.String(),
	})
	return s.router.Handle(path, s.Handler(f)), nil
}

// MustHandle calls Handle and panics on error.  The panic includes
// the detailed error.
func (s *Service) MustHandle(path string, target any, paramNames ...string) *mux.Route {
	route, err := s.Handle(path, target, paramNames...)
	if err != nil {
		panic(ndep.DetailedError(err))
	}
	return route
}

// Handler turns an injected function into an http.HandlerFunc
func (s *Service) Handler(f *ndep.Function) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tw := &trackingWriter{ResponseWriter: w}
		model, err := s.call(f, tw, r)
		if tw.written {
			if err != nil {
				s.log.Warn("error after response was written", s.fields(r, err))
			}
			return
		}
		s.encode(tw, r, model, err)
	}
}

func (s *Service) call(f *ndep.Function, w http.ResponseWriter, r *http.Request) (model any, err error) {
	defer SetErrorOnPanic(&err, s.log)
	return f.Call(ndep.State{
		StateRequest: r,
		StateWriter:  w,
		StateURLVars: URLVars(mux.Vars(r)),
	})
}

func (s *Service) encode(w http.ResponseWriter, r *http.Request, model any, err error) {
	if err != nil {
		code := GetReturnCode(err)
		if code >= 500 {
			s.log.Error("endpoint failed", s.fields(r, err))
		} else {
			s.log.Debug("endpoint rejected request", s.fields(r, err))
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	if model == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	enc, err := s.marshal(model)
	if err != nil {
		s.log.Error("cannot marshal response", s.fields(r, err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	w.Header().Set("Content-Type", s.contentType)
	_, err = w.Write(enc)
	if err != nil {
		s.log.Warn("cannot write response", s.fields(r, err))
	}
}

func (s *Service) fields(r *http.Request, err error) map[string]any {
	return map[string]any{
		"error":  err.Error(),
		"method": r.Method,
		"uri":    r.URL.String(),
	}
}

type trackingWriter struct {
	http.ResponseWriter
	written bool
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

func (w *trackingWriter) WriteHeader(code int) {
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}
