package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_InsertAndCounts(t *testing.T) {
	tbl := New(nil)
	r := tbl.Insert("a")
	require.NotZero(t, r)
	assert.Equal(t, 1, tbl.RefCount(r))
	assert.Equal(t, 1, tbl.Len())

	tbl.IncRef(r)
	assert.Equal(t, 2, tbl.RefCount(r))

	tbl.DecRef(r)
	v, ok := tbl.Get(r)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	tbl.DecRef(r)
	_, ok = tbl.Get(r)
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, 0, tbl.RefCount(r))
}

func TestTable_StaleRefAfterReuse(t *testing.T) {
	tbl := New(nil)
	old := tbl.Insert(1)
	tbl.DecRef(old)

	fresh := tbl.Insert(2)
	assert.Equal(t, old.index(), fresh.index())
	assert.NotEqual(t, old, fresh)
	assert.False(t, tbl.Valid(old))

	// operations on the stale ref must not touch the new value
	tbl.DecRef(old)
	tbl.IncRef(old)
	assert.Equal(t, 1, tbl.RefCount(fresh))
}

func TestTable_OnFreeRunsOnce(t *testing.T) {
	var freed []any
	tbl := New(func(_ Ref, v any) { freed = append(freed, v) })
	r := tbl.Insert("x")
	tbl.IncRef(r)
	tbl.DecRef(r)
	assert.Empty(t, freed)
	tbl.DecRef(r)
	tbl.DecRef(r)
	assert.Equal(t, []any{"x"}, freed)
}

func TestTable_ZeroRefIsInvalid(t *testing.T) {
	tbl := New(nil)
	assert.False(t, tbl.Valid(0))
	tbl.DecRef(0)
	assert.Equal(t, Ref(0), tbl.IncRef(0))
}

func TestTable_Clear(t *testing.T) {
	var freed int
	tbl := New(func(Ref, any) { freed++ })
	a := tbl.Insert(1)
	tbl.IncRef(a)
	tbl.Insert(2)
	tbl.Clear()
	assert.Equal(t, 2, freed)
	assert.Equal(t, 0, tbl.Len())
}
