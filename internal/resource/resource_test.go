package resource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/ngaot/internal/host"
)

func TestLoadRawResource(t *testing.T) {
	t.Parallel()

	fs := host.NewMemory(map[string]string{"/app/src/app.component.html": "<h1>hi</h1>"})
	l := NewLoader(RawEvaluator{Files: fs}, logr.Discard())

	got, err := l.Load(context.Background(), "/app/src/app.component.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>hi</h1>", got)
	assert.True(t, l.IsResource("./other.html"))
	assert.False(t, l.IsResource("./app.module"))
	assert.Equal(t, []string{".html"}, l.Extensions())
}

func TestLoadRejectsNonString(t *testing.T) {
	t.Parallel()

	l := NewLoader(EvaluatorFunc(func(context.Context, string) (any, error) {
		return map[string]string{"default": "x"}, nil
	}), logr.Logger{})

	_, err := l.Load(context.Background(), "/app/src/styles.css")
	require.ErrorIs(t, err, ErrNotString)
	assert.Contains(t, err.Error(), "/app/src/styles.css")
	assert.True(t, l.IsResource("a.css"), "the extension is tracked even when loading fails")
}

func TestLoadWrapsEvaluatorErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	l := NewLoader(EvaluatorFunc(func(context.Context, string) (any, error) {
		return nil, boom
	}), logr.Discard())

	_, err := l.Load(context.Background(), "/app/a.scss")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotString)
}

func TestConcurrentLoadsAreCoalesced(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	l := NewLoader(EvaluatorFunc(func(context.Context, string) (any, error) {
		calls.Add(1)
		<-release
		return "body", nil
	}), logr.Discard())

	const n = 8
	var (
		wg      sync.WaitGroup
		entered sync.WaitGroup
	)
	results := make([]string, n)
	entered.Add(n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entered.Done()
			s, err := l.Load(context.Background(), "/app/a.html")
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	entered.Wait()
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "body", r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(n))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}
