package ndep_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muir/ndep"
)

type (
	isoValue   string
	stateValue int
	doubled    int
)

func TestInjectorIsolation(t *testing.T) {
	t.Parallel()
	one := ndep.MustNewInjector("one")
	two := ndep.MustNewInjector("two")
	one.MustProvide(func() isoValue { return "from one" })

	v, err := one.Run(func(v isoValue) isoValue { return v }, nil)
	require.NoError(t, err)
	assert.Equal(t, isoValue("from one"), v)

	_, err = two.Inject(func(v isoValue) isoValue { return v })
	var ue *ndep.UnresolvedDependencyError
	require.True(t, errors.As(err, &ue), "%T", err)
	assert.Equal(t, ndep.KeyOf[isoValue](), ue.Key)
	assert.Contains(t, err.Error(), "two")
}

func TestRequiredStateRoundTrip(t *testing.T) {
	t.Parallel()
	inj, err := ndep.NewInjector("state",
		ndep.WithRequiredState(map[string]ndep.Key{"n": ndep.KeyOf[stateValue]()}),
		ndep.WithProviders(func(n stateValue) doubled { return doubled(n * 2) }),
	)
	require.NoError(t, err)
	f, err := inj.Inject(func(n stateValue, d doubled) (int, error) { return int(n) + int(d), nil })
	require.NoError(t, err)
	for _, n := range []int{0, 1, 7} {
		got, err := ndep.CallAs[int](f, ndep.State{"n": stateValue(n)})
		require.NoError(t, err)
		assert.Equal(t, n*3, got)
	}
	assert.Equal(t, []string{"n"}, inj.RequiredState().Names())
}

func TestNewInjectorOptionError(t *testing.T) {
	t.Parallel()
	_, err := ndep.NewInjector("bad", ndep.WithProviders(func() {}))
	var de *ndep.DescribeError
	require.True(t, errors.As(err, &de), "%T", err)
	assert.Panics(t, func() { ndep.MustNewInjector("bad", ndep.WithProviders(func() {})) })
}

func TestProvideAllOrNothing(t *testing.T) {
	t.Parallel()
	inj := ndep.MustNewInjector("all-or-nothing")
	err := inj.Provide(func() isoValue { return "ok" }, func() {})
	require.Error(t, err)
	assert.Equal(t, 0, inj.Providers().Len())
}

func TestMustInjectPanicsWithDetails(t *testing.T) {
	t.Parallel()
	inj := ndep.MustNewInjector("must")
	defer func() {
		r := recover()
		require.NotNil(t, r)
		msg, ok := r.(string)
		require.True(t, ok, "%T", r)
		assert.Contains(t, msg, "no provider for")
		assert.Contains(t, msg, "BEGIN build plan")
	}()
	inj.MustInject(func(isoValue) {})
}

func TestCallAsMismatch(t *testing.T) {
	t.Parallel()
	inj := ndep.MustNewInjector("call-as")
	f := inj.MustInject(func() string { return "text" })
	_, err := ndep.CallAs[int](f, nil)
	var rte *ndep.ResultTypeError
	require.True(t, errors.As(err, &rte), "%T", err)

	sentinel := errors.New("partial")
	h := inj.MustInject(func() (string, error) { return "text", sentinel })
	_, err = ndep.CallAs[int](h, nil)
	assert.ErrorIs(t, err, sentinel, "target error is kept")
	assert.True(t, errors.As(err, &rte))

	g := inj.MustInject(func() {})
	v, err := ndep.CallAs[int](g, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestInjectTarget(t *testing.T) {
	t.Parallel()
	inj := ndep.MustNewInjector("made")
	inj.Register(ndep.MakeProducer("seven", ndep.KeyOf[int](), nil, func([]any) (any, error) { return 7, nil }))
	target := ndep.MakeTarget("plusOne", []ndep.Param{{Name: "n", Key: ndep.KeyOf[int]()}}, func(args []any) (any, error) {
		return args[0].(int) + 1, nil
	})
	f, err := inj.InjectTarget(target)
	require.NoError(t, err)
	assert.Equal(t, "plusOne", f.Name())
	v, err := f.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, 8, v)

	_, err = inj.InjectTarget(ndep.MustDescribe("p", func() isoValue { return "" }))
	assert.Error(t, err)
}

func TestSetProviders(t *testing.T) {
	t.Parallel()
	inj := ndep.MustNewInjector("set")
	inj.MustProvide(func() isoValue { return "old" })
	saved := inj.Providers().Clone()
	inj.SetProviders(ndep.NewProviderRegistry())
	_, err := inj.Inject(func(isoValue) {})
	assert.Error(t, err)
	inj.SetProviders(saved)
	v, err := inj.Run(func(v isoValue) isoValue { return v }, nil)
	require.NoError(t, err)
	assert.Equal(t, isoValue("old"), v)

	require.NoError(t, inj.SetRequiredState(map[string]ndep.Key{"v": ndep.KeyOf[isoValue]()}))
	v, err = inj.Run(func(v isoValue) isoValue { return v }, ndep.State{"v": isoValue("state")})
	require.NoError(t, err)
	assert.Equal(t, isoValue("state"), v, "state wins over providers")
}

type defaultOnly string

// TestDefaultInjector uses types that no other test registers so it
// can share ndep.Default.
func TestDefaultInjector(t *testing.T) {
	require.NoError(t, ndep.Provide(func() defaultOnly { return "default" }))
	f, err := ndep.Inject(func(d defaultOnly) defaultOnly { return d })
	require.NoError(t, err)
	v, err := f.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultOnly("default"), v)

	v, err = ndep.Run(func(d defaultOnly) string { return string(d) + "!" }, nil)
	require.NoError(t, err)
	assert.Equal(t, "default!", v)

	_, err = ndep.MustNewInjector("other").Inject(func(defaultOnly) {})
	assert.Error(t, err, "the default injector is isolated from others")
}
