package scriptx_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/backend/exprvm"
)

func TestLoopRunsJobsInScope(t *testing.T) {
	e := newEngine(t)
	loop := e.Loop()
	assert.False(t, loop.IsLoopPending())

	var order []string
	require.NoError(t, loop.ScheduleJob(func(sc *scriptx.EngineScope) error {
		assert.Same(t, e, sc.Engine())
		order = append(order, "first")
		return loop.ScheduleJob(func(*scriptx.EngineScope) error {
			order = append(order, "nested")
			return nil
		})
	}))
	require.NoError(t, loop.ScheduleJob(func(sc *scriptx.EngineScope) error {
		v, err := sc.Eval("6 * 7")
		if err != nil {
			return err
		}
		order = append(order, v.String())
		return nil
	}))
	assert.True(t, loop.IsLoopPending())

	require.NoError(t, loop.Run())
	assert.Equal(t, []string{"first", "42", "nested"}, order)
	assert.False(t, loop.IsLoopPending())
	assert.Zero(t, e.Stack().Depth())
	assert.Zero(t, e.Stats().LiveLocals)
}

func TestLoopStopsAtFailingJob(t *testing.T) {
	e := newEngine(t)
	loop := e.Loop()
	boom := errors.New("boom")

	ran := 0
	require.NoError(t, loop.ScheduleJob(func(*scriptx.EngineScope) error { return boom }))
	require.NoError(t, loop.ScheduleJob(func(*scriptx.EngineScope) error {
		ran++
		return nil
	}))

	assert.ErrorIs(t, loop.Run(), boom)
	assert.Zero(t, ran)
	assert.True(t, loop.IsLoopPending())

	require.NoError(t, loop.Run())
	assert.Equal(t, 1, ran)
}

func TestLoopScheduleFromGoroutines(t *testing.T) {
	e := newEngine(t)
	loop := e.Loop()

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, loop.ScheduleJob(func(*scriptx.EngineScope) error {
				mu.Lock()
				count++
				mu.Unlock()
				return nil
			}))
		}()
	}
	wg.Wait()

	require.NoError(t, loop.Run())
	assert.Equal(t, 8, count)
}

func TestLoopStop(t *testing.T) {
	e := newEngine(t)
	loop := e.Loop()
	require.NoError(t, loop.ScheduleJob(func(*scriptx.EngineScope) error { return nil }))

	loop.Stop()
	assert.False(t, loop.IsLoopPending())
	assert.ErrorIs(t, loop.ScheduleJob(func(*scriptx.EngineScope) error { return nil }), scriptx.ErrLoopStopped)
	require.NoError(t, loop.Run())
}

func TestDestroyStopsLoop(t *testing.T) {
	e, err := scriptx.NewEngine(exprvm.New(), scriptx.WithStack(scriptx.NewStack()))
	require.NoError(t, err)
	require.NoError(t, e.Destroy())
	assert.ErrorIs(t, e.Loop().ScheduleJob(func(*scriptx.EngineScope) error { return nil }), scriptx.ErrLoopStopped)
}
