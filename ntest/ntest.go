/*
Package ntest runs injected test functions.

The *testing.T is required state.  Scoped providers are released
when the test function returns, including when it calls t.FailNow:

	var inj = ntest.MustInstall(ndep.MustNewInjector("tests"))

	func TestThing(t *testing.T) {
		ntest.Run(t, inj, func(t *testing.T, dir ntest.TempDir) {
			...
		})
	}
*/
package ntest

import (
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/muir/ndep"
)

// StateT is the name of the required state that supplies *testing.T
const StateT = "t"

// TempDir is a temporary directory that is removed when the test
// function returns
type TempDir string

// Install declares *testing.T as required state and registers the
// TempDir provider.
func Install(inj *ndep.Injector) error {
	err := inj.RequireState(map[string]ndep.Key{
		StateT: ndep.KeyOf[*testing.T](),
	})
	if err != nil {
		return errors.Wrap(err, "ntest install")
	}
	return errors.Wrap(inj.Provide(makeTempDir), "ntest install")
}

// MustInstall calls Install and panics on error
func MustInstall(inj *ndep.Injector) *ndep.Injector {
	if err := Install(inj); err != nil {
		panic(err)
	}
	return inj
}

func makeTempDir(t *testing.T) (TempDir, ndep.ReleaseFunc, error) {
	dir, err := os.MkdirTemp("", "ntest-")
	if err != nil {
		return "", nil, errors.Wrap(err, "make temp dir")
	}
	t.Logf("temp dir %s", dir)
	return TempDir(dir), func(ndep.Outcome) error {
		return errors.Wrap(os.RemoveAll(dir), "remove temp dir")
	}, nil
}

// Run injects testFunc and calls it.  Injection and call errors fail
// the test with the detailed error.  Additional state can be passed;
// it is merged with the *testing.T.
func Run(t *testing.T, inj *ndep.Injector, testFunc any, extra ...ndep.State) {
	t.Helper()
	f, err := inj.Inject(testFunc)
	if err != nil {
		require.FailNow(t, "cannot inject test function", ndep.DetailedError(err))
	}
	state := ndep.State{}
	for _, s := range extra {
		for k, v := range s {
			state[k] = v
		}
	}
	state[StateT] = t
	_, err = f.Call(state)
	require.NoError(t, err)
}

// Subtest runs testFunc as a subtest named name
func Subtest(t *testing.T, inj *ndep.Injector, name string, testFunc any, extra ...ndep.State) bool {
	t.Helper()
	return t.Run(name, func(t *testing.T) {
		Run(t, inj, testFunc, extra...)
	})
}
