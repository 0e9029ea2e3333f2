package nhttp_test

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muir/ndep"
	"github.com/muir/ndep/nhttp"
	"github.com/muir/ndep/nlog"
)

type user struct {
	ID      string `json:"id"`
	Agent   string `json:"agent"`
	Verbose bool   `json:"verbose"`
}

type createUser struct {
	Name string `json:"name"`
}

func newService(t *testing.T, logBuf *bytes.Buffer) *nhttp.Service {
	inj := nhttp.MustInstall(ndep.MustNewInjector(t.Name()))
	inj.Register(nhttp.DecodeJSON[createUser]())
	return nhttp.NewService(inj, nhttp.WithLogger(nlog.LoggerFromStd(log.New(logBuf, "", 0))))
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader, headers ...string) (int, string) {
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	b, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(b)
}

func TestEndpointProviders(t *testing.T) {
	t.Parallel()
	var logBuf bytes.Buffer
	svc := newService(t, &logBuf)
	svc.MustHandle("/users/{id}", func(id nhttp.URLArg, agent nhttp.Header, verbose nhttp.QueryParam, m nhttp.Method) (any, error) {
		if m != http.MethodGet {
			return nil, errors.New("wrong method")
		}
		return user{ID: string(id), Agent: string(agent), Verbose: verbose == "yes"}, nil
	}, "id", "User-Agent", "verbose").Methods(http.MethodGet)

	code, body := do(t, svc, http.MethodGet, "/users/42?verbose=yes", nil, "User-Agent", "tester")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"id":"42","agent":"tester","verbose":true}`, body)

	code, _ = do(t, svc, http.MethodPost, "/users/42", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestEndpointErrors(t *testing.T) {
	t.Parallel()
	var logBuf bytes.Buffer
	svc := newService(t, &logBuf)
	svc.MustHandle("/missing", func() error {
		return nhttp.NotFound(errors.New("nothing here"))
	})
	svc.MustHandle("/broken", func() error {
		return errors.New("internal")
	})
	svc.MustHandle("/panic", func(nhttp.Path) {
		panic("at the disco")
	})
	svc.MustHandle("/noarg", func(x nhttp.URLArg) string { return string(x) }, "x")

	code, body := do(t, svc, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "nothing here", body)

	code, _ = do(t, svc, http.MethodGet, "/broken", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, logBuf.String(), "ERROR endpoint failed")

	code, body = do(t, svc, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "panic: at the disco", body)
	assert.Contains(t, logBuf.String(), "ERROR panic!")

	code, _ = do(t, svc, http.MethodGet, "/noarg", nil)
	assert.Equal(t, http.StatusNotFound, code, "missing route variables are 404, through ProducerError")
}

func TestEndpointBody(t *testing.T) {
	t.Parallel()
	var logBuf bytes.Buffer
	svc := newService(t, &logBuf)
	svc.MustHandle("/users", func(c createUser) user {
		return user{ID: strings.ToLower(c.Name)}
	}).Methods(http.MethodPost)

	code, body := do(t, svc, http.MethodPost, "/users", strings.NewReader(`{"name":"Alice"}`))
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"id":"alice","agent":"","verbose":false}`, body)

	code, _ = do(t, svc, http.MethodPost, "/users", strings.NewReader(`{`))
	assert.Equal(t, http.StatusBadRequest, code)

	huge := `{"name":"` + strings.Repeat("a", int(nhttp.MaxBodySize)) + `"}`
	code, body = do(t, svc, http.MethodPost, "/users", strings.NewReader(huge))
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Contains(t, body, "larger than")
}

func TestEndpointWritesDirectly(t *testing.T) {
	t.Parallel()
	var logBuf bytes.Buffer
	svc := newService(t, &logBuf)
	svc.MustHandle("/raw", func(w http.ResponseWriter, h nhttp.Headers) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(http.Header(h).Get("X-Thing")))
	})
	svc.MustHandle("/empty", func() {})

	code, body := do(t, svc, http.MethodGet, "/raw", nil, "X-Thing", "brewing")
	assert.Equal(t, http.StatusTeapot, code)
	assert.Equal(t, "brewing", body)

	code, _ = do(t, svc, http.MethodGet, "/empty", nil)
	assert.Equal(t, http.StatusNoContent, code)
}

func TestHandleUnresolved(t *testing.T) {
	t.Parallel()
	var logBuf bytes.Buffer
	svc := newService(t, &logBuf)
	type notProvided struct{}
	_, err := svc.Handle("/bad", func(notProvided) {})
	var ue *ndep.UnresolvedDependencyError
	require.True(t, errors.As(err, &ue), "%T", err)
	assert.Panics(t, func() { svc.MustHandle("/bad", func(notProvided) {}) })
}

func TestGetReturnCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 500, nhttp.GetReturnCode(errors.New("plain")))
	assert.Equal(t, 403, nhttp.GetReturnCode(errors.Wrap(nhttp.Forbidden(errors.New("no")), "wrapped")))
	assert.Equal(t, 401, nhttp.GetReturnCode(nhttp.Unauthorized(errors.New("who"))))
	assert.Nil(t, nhttp.ReturnCode(nil, 400))
}

func TestRecoverHelpers(t *testing.T) {
	t.Parallel()
	var err error
	func() {
		defer nhttp.SetErrorOnPanic(&err, nlog.NoLogger())
		panic(7)
	}()
	require.Error(t, err)
	assert.Equal(t, 7, nhttp.RecoverInterface(err))
	assert.Contains(t, nhttp.RecoverStack(err), "goroutine")
	assert.Nil(t, nhttp.RecoverInterface(errors.New("x")))
}
