package ndep

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type charResource struct {
	released []Outcome
}

func (r *charResource) Release(o Outcome) error {
	r.released = append(r.released, o)
	return nil
}

type charValue struct{ n int }

func TestDescribeShapes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		fn       any
		produces Key
		scoped   bool
		params   int
	}{
		{"literal", charValue{n: 3}, KeyOf[charValue](), false, 0},
		{"producer", func(planA) charValue { return charValue{} }, KeyOf[charValue](), false, 1},
		{"fallible", func() (charValue, error) { return charValue{}, nil }, KeyOf[charValue](), false, 0},
		{"scoped", func() (charValue, ReleaseFunc) { return charValue{}, nil }, KeyOf[charValue](), true, 0},
		{"fallible scoped", func(planA, planB) (charValue, ReleaseFunc, error) { return charValue{}, nil, nil }, KeyOf[charValue](), true, 2},
		{"resource", func() *charResource { return &charResource{} }, KeyOf[*charResource](), true, 0},
		{"fallible resource", func() (*charResource, error) { return &charResource{}, nil }, KeyOf[*charResource](), true, 0},
		{"parameterized", func(ParamName) planHeader { return "" }, KeyOf[planHeader](), false, 1},
	}
	for _, tc := range cases {
		p, err := Describe(tc.name, tc.fn)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.name, p.Name())
		assert.Equal(t, tc.produces, p.Produces(), tc.name)
		assert.Equal(t, tc.scoped, p.Scoped(), tc.name)
		assert.Len(t, p.Params(), tc.params, tc.name)
		assert.False(t, p.IsTarget(), tc.name)
	}
}

func TestDescribeRejects(t *testing.T) {
	t.Parallel()
	var nilFunc func() planA
	cases := []struct {
		name string
		fn   any
		want string
	}{
		{"nil", nil, "is nil"},
		{"nil func", nilFunc, "is nil"},
		{"no return", func() {}, "does not return exactly"},
		{"returns error only", func() error { return nil }, "return value #1 is error"},
		{"variadic", func(...planA) planB { return 0 }, "is variadic"},
		{"too many", func() (planA, planB, planC, planD) { return 0, 0, 0, 0 }, "does not return exactly"},
		{"bad release", func() (planA, planB) { return 0, 0 }, "is not ReleaseFunc"},
		{"error literal", errors.New("x"), "is an error"},
	}
	for _, tc := range cases {
		_, err := Describe(tc.name, tc.fn)
		require.Error(t, err, tc.name)
		var de *DescribeError
		require.True(t, errors.As(err, &de), tc.name)
		assert.Contains(t, err.Error(), tc.want, tc.name)
	}
}

func TestDescribeTargetShapes(t *testing.T) {
	t.Parallel()
	targets := []any{
		func() {},
		func(planA) error { return nil },
		func(planA, planB) int { return 0 },
		func(planA) (int, error) { return 0, nil },
	}
	for i, fn := range targets {
		p, err := DescribeTarget("", fn)
		require.NoError(t, err, i)
		assert.True(t, p.IsTarget())
		assert.True(t, p.Produces().IsZero())
	}

	_, err := DescribeTarget("", func(ParamName) {})
	assert.Error(t, err, "targets cannot take ParamName")
	_, err = DescribeTarget("", 7)
	assert.Error(t, err)
	_, err = DescribeTarget("", MustDescribe("p", func() planA { return 0 }))
	assert.Error(t, err, "a producer is not a target")
}

func TestDescribeParamNames(t *testing.T) {
	t.Parallel()
	p, err := Describe("p", func(planA, planA, *charResource) planB { return 0 }, "first")
	require.NoError(t, err)
	names := make([]string, 0, 3)
	for _, param := range p.Params() {
		names = append(names, param.Name)
	}
	assert.Equal(t, []string{"first", "planA", "charResource"}, names)

	p, err = Describe("p", func(planA, planA) planB { return 0 })
	require.NoError(t, err)
	assert.Equal(t, "planA2", p.Params()[1].Name)

	_, err = Describe("p", func(planA) planB { return 0 }, "a", "b")
	assert.Error(t, err)
}

func TestDescribePassesProducer(t *testing.T) {
	t.Parallel()
	p := MakeProducer("made", KeyOf[planA](), nil, func([]any) (any, error) { return planA(1), nil })
	d, err := Describe("ignored", p)
	require.NoError(t, err)
	assert.Same(t, p, d)
}

func TestDescribedCalls(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("sentinel")
	p := MustDescribe("f", func(a planA) (planB, error) {
		if a < 0 {
			return 0, sentinel
		}
		return planB(a * 2), nil
	})
	v, release, err := p.call([]any{planA(4)})
	require.NoError(t, err)
	assert.Nil(t, release)
	assert.Equal(t, planB(8), v)

	_, _, err = p.call([]any{planA(-1)})
	assert.Same(t, sentinel, err)

	_, _, err = p.call([]any{"not a planA"})
	var ae *ArgumentTypeError
	require.True(t, errors.As(err, &ae), "%T", err)
	assert.Equal(t, 0, ae.Position)

	r := MustDescribe("r", func() *charResource { return &charResource{} })
	v, release, err = r.call(nil)
	require.NoError(t, err)
	require.NotNil(t, release)
	require.NoError(t, release(Failure))
	assert.Equal(t, []Outcome{Failure}, v.(*charResource).released)

	nilResource := MustDescribe("nilResource", func() *charResource { return nil })
	v, release, err = nilResource.call(nil)
	require.NoError(t, err)
	assert.Nil(t, release)
	assert.Nil(t, v)
}
