package scriptx

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleStore_Basic(t *testing.T) {
	hs := newHandleStore()
	require.NotNil(t, hs)
	assert.Equal(t, 0, hs.Count())

	data := &FunctionData{}
	id := hs.Store(data)
	assert.Greater(t, id, int32(0))
	assert.Equal(t, id, data.id)
	assert.Equal(t, 1, hs.Count())

	loaded, ok := hs.Load(id)
	assert.True(t, ok)
	assert.Same(t, data, loaded)

	assert.True(t, hs.Delete(id))
	assert.Equal(t, 0, hs.Count())

	loaded, ok = hs.Load(id)
	assert.False(t, ok)
	assert.Nil(t, loaded)
}

func TestHandleStore_DeleteOnce(t *testing.T) {
	hs := newHandleStore()
	id := hs.Store(&FunctionData{})

	assert.True(t, hs.Delete(id))
	assert.False(t, hs.Delete(id))
	assert.False(t, hs.Delete(0))
	assert.False(t, hs.Delete(-1))
}

func TestHandleStore_IDsAreNotReused(t *testing.T) {
	hs := newHandleStore()
	first := hs.Store(&FunctionData{})
	hs.Delete(first)
	second := hs.Store(&FunctionData{})
	assert.Greater(t, second, first)
}

func TestHandleStore_Clear(t *testing.T) {
	hs := newHandleStore()
	for i := 0; i < 5; i++ {
		hs.Store(&FunctionData{})
	}
	assert.Equal(t, 5, hs.Clear())
	assert.Equal(t, 0, hs.Count())
	assert.Equal(t, 0, hs.Clear())
}

func TestHandleStore_Overflow(t *testing.T) {
	hs := newHandleStore()
	hs.nextID.Store(math.MaxInt32 - 2)
	hs.Store(&FunctionData{})
	assert.Panics(t, func() { hs.Store(&FunctionData{}) })
}

func TestHandleStore_Concurrency(t *testing.T) {
	hs := newHandleStore()
	const numGoroutines = 10
	const numOpsPerGoroutine = 100

	var wg sync.WaitGroup
	var successCount int64

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numOpsPerGoroutine; j++ {
				data := &FunctionData{}
				id := hs.Store(data)
				if loaded, ok := hs.Load(id); ok && loaded == data {
					atomic.AddInt64(&successCount, 1)
				}
				hs.Delete(id)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(numGoroutines*numOpsPerGoroutine), successCount)
	assert.Equal(t, 0, hs.Count())
}
