package ndep

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	res1 struct{ id int }
	res2 struct{ id int }
	res3 struct{ id int }
)

type releaseLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *releaseLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, s)
}

func (l *releaseLog) releaser(name string) ReleaseFunc {
	return func(o Outcome) error {
		l.add(name + " " + o.String())
		return nil
	}
}

// scopedChain registers R1 <- R2 <- R3, each scoped
func scopedChain(t *testing.T, log *releaseLog) *Injector {
	inj := MustNewInjector(t.Name())
	inj.MustProvide(
		func() (*res1, ReleaseFunc) {
			log.add("acquire R1")
			return &res1{id: 1}, log.releaser("R1")
		},
		func(r *res1) (*res2, ReleaseFunc) {
			log.add("acquire R2")
			return &res2{id: 2}, log.releaser("R2")
		},
		func(r *res2) (*res3, ReleaseFunc) {
			log.add("acquire R3")
			return &res3{id: 3}, log.releaser("R3")
		},
	)
	return inj
}

func TestTeardownOrderSuccess(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		var log releaseLog
		f := scopedChain(t, &log).MustInject(func(r *res3) int {
			log.add("target")
			return r.id
		})
		v, err := f.Call(nil)
		require.NoError(t, err)
		assert.Equal(t, 3, v)
		assert.Equal(t, []string{
			"acquire R1", "acquire R2", "acquire R3",
			"target",
			"R3 success", "R2 success", "R1 success",
		}, log.entries)
	})
}

func TestTeardownOrderFailure(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		var log releaseLog
		sentinel := errors.New("target failed")
		f := scopedChain(t, &log).MustInject(func(r *res3) error {
			return sentinel
		})
		_, err := f.Call(nil)
		assert.Same(t, sentinel, err, "target errors are returned unchanged")
		assert.Equal(t, []string{
			"acquire R1", "acquire R2", "acquire R3",
			"R3 failure", "R2 failure", "R1 failure",
		}, log.entries)
	})
}

func TestTeardownAfterProducerFailure(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		var log releaseLog
		sentinel := errors.New("no R3 today")
		inj := scopedChain(t, &log)
		inj.MustProvide(func(r *res2) (*res3, ReleaseFunc, error) {
			return nil, nil, sentinel
		})
		called := false
		f := inj.MustInject(func(r *res3) { called = true })
		_, err := f.Call(nil)
		require.Error(t, err)
		assert.False(t, called)
		assert.ErrorIs(t, err, sentinel)
		var pe *ProducerError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, KeyOf[*res3](), pe.Key)
		assert.Equal(t, []string{
			"acquire R1", "acquire R2",
			"R2 failure", "R1 failure",
		}, log.entries)
	})
}

func TestTeardownAfterPanic(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		var log releaseLog
		f := scopedChain(t, &log).MustInject(func(r *res3) {
			panic("oops")
		})
		assert.PanicsWithValue(t, "oops", func() { _, _ = f.Call(nil) })
		assert.Equal(t, []string{
			"acquire R1", "acquire R2", "acquire R3",
			"R3 failure", "R2 failure", "R1 failure",
		}, log.entries)
	})
}

func TestTeardownAfterGoexit(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		var log releaseLog
		f := scopedChain(t, &log).MustInject(func(r *res2) {
			runtime.Goexit()
		})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = f.Call(nil)
		}()
		<-done
		assert.Equal(t, []string{
			"acquire R1", "acquire R2",
			"R2 failure", "R1 failure",
		}, log.entries)
	})
}

func TestTeardownErrors(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		inj := MustNewInjector(t.Name())
		closeErr := errors.New("close failed")
		released := 0
		inj.MustProvide(
			func() (*res1, ReleaseFunc) {
				return &res1{}, func(Outcome) error { released++; return nil }
			},
			func(*res1) (*res2, ReleaseFunc) {
				return &res2{}, func(Outcome) error { released++; return closeErr }
			},
		)
		f := inj.MustInject(func(*res2) int { return 5 })
		v, err := f.Call(nil)
		assert.Nil(t, v)
		assert.Equal(t, 2, released, "every release is attempted")
		var te *TeardownError
		require.True(t, errors.As(err, &te), "%T", err)
		assert.Equal(t, Success, te.Outcome)
		assert.ErrorIs(t, err, closeErr)

		targetErr := errors.New("target")
		f = inj.MustInject(func(*res2) error { return targetErr })
		_, err = f.Call(nil)
		assert.ErrorIs(t, err, targetErr)
		assert.ErrorIs(t, err, closeErr)
		require.True(t, errors.As(err, &te))
		assert.Equal(t, Failure, te.Outcome)
	})
}

func TestReleasePanics(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		var log releaseLog
		inj := scopedChain(t, &log)
		inj.MustProvide(func(r *res2) (*res3, ReleaseFunc) {
			log.add("acquire R3")
			return &res3{id: 3}, func(Outcome) error { panic("release R3 blew up") }
		})
		f := inj.MustInject(func(*res3) int { return 3 })
		v, err := f.Call(nil)
		assert.Nil(t, v)
		assert.Equal(t, []string{
			"acquire R1", "acquire R2", "acquire R3",
			"R2 success", "R1 success",
		}, log.entries)
		var re *ReleaseError
		require.True(t, errors.As(err, &re), "%T", err)
		assert.Equal(t, KeyOf[*res3](), re.Key)
		var pe *ReleasePanicError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "release R3 blew up", pe.Value)

		log.entries = nil
		f = inj.MustInject(func(*res3) { panic("target") })
		assert.PanicsWithValue(t, "target", func() { _, _ = f.Call(nil) })
		assert.Equal(t, []string{
			"acquire R1", "acquire R2", "acquire R3",
			"R2 failure", "R1 failure",
		}, log.entries)
	})
}

func TestMemoizedPerCall(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		inj := MustNewInjector(t.Name())
		calls := 0
		inj.MustProvide(
			func() *res1 {
				calls++
				return &res1{id: calls}
			},
			func(r *res1) *res2 { return &res2{id: r.id} },
			func(r *res1) *res3 { return &res3{id: r.id} },
		)
		f := inj.MustInject(func(a *res1, b *res2, c *res3) bool {
			return a.id == b.id && b.id == c.id
		})
		same, err := f.Call(nil)
		require.NoError(t, err)
		assert.Equal(t, true, same)
		assert.Equal(t, 1, calls)

		var seen [2]*res1
		g := inj.MustInject(func(a *res1) *res1 { return a })
		for i := range seen {
			v, err := g.Call(nil)
			require.NoError(t, err)
			seen[i] = v.(*res1)
		}
		assert.NotSame(t, seen[0], seen[1], "values are not shared between calls")
		assert.Equal(t, 3, calls)
	})
}

func TestMissingState(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		inj := MustNewInjector(t.Name())
		require.NoError(t, inj.RequireState(map[string]Key{"n": KeyOf[planA]()}))
		f := inj.MustInject(func(a planA) int { return int(a) + 1 })

		v, err := f.Call(State{"n": planA(41)})
		require.NoError(t, err)
		assert.Equal(t, 42, v)

		_, err = f.Call(State{"m": planA(41)})
		var me *MissingStateError
		require.True(t, errors.As(err, &me), "%T", err)
		assert.Equal(t, "n", me.Name)

		_, err = f.Call(State{"n": "forty-one"})
		var ae *ArgumentTypeError
		require.True(t, errors.As(err, &ae), "%T", err)
	})
}

func TestConcurrentCalls(t *testing.T) {
	inj := MustNewInjector(t.Name())
	require.NoError(t, inj.RequireState(map[string]Key{"n": KeyOf[planA]()}))
	inj.MustProvide(func(a planA) (planB, ReleaseFunc) {
		return planB(a * 2), nil
	})
	f := inj.MustInject(func(b planB) int { return int(b) })
	var wg sync.WaitGroup
	results := make([]any, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = f.Call(State{"n": planA(i)})
		}(i)
	}
	wg.Wait()
	for i, v := range results {
		assert.Equal(t, i*2, v, fmt.Sprint(i))
	}
}
