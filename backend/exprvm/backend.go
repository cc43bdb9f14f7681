// Package exprvm is a scriptx backend whose script language is expr-lang.
//
// Values live in a reference counted heap: every handle is an arena.Ref,
// IncRef and DecRef adjust an exact count, and a value is freed the moment
// its count reaches zero. Freeing a host function runs its finalizer
// immediately, which makes this backend the reference for the refcount
// discipline of the core. Reference cycles between objects are never freed.
//
// Eval compiles and runs an expr expression. Global properties are the
// expression's variables and unknown names read as nil; global functions
// are callable by name; the builtin throw(message) raises a script error.
package exprvm

import (
	"context"
	"errors"

	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/internal/buildinfo"
	"github.com/buke/scriptx-go/internal/heap"
)

// Backend implements scriptx.Backend on top of expr-lang.
type Backend struct {
	*heap.Heap
	host scriptx.FunctionHost
}

var _ scriptx.Backend = (*Backend)(nil)

// New returns an uninitialized backend; pass it to scriptx.NewEngine.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string { return "exprvm" }

func (b *Backend) Version() string {
	return "expr " + buildinfo.Version("github.com/expr-lang/expr")
}

func (b *Backend) Initialize(_ context.Context, host scriptx.FunctionHost) error {
	if host == nil {
		return errors.New("exprvm: function host is nil")
	}
	b.host = host
	b.Heap = heap.New(host, true)
	return nil
}

// Shutdown frees every value, finalizing host functions still alive.
func (b *Backend) Shutdown() error {
	if b.Heap == nil {
		return nil
	}
	b.Heap.Close()
	Logger().Debug("exprvm shut down")
	return nil
}

// GC does nothing: values are freed as soon as they are unreferenced.
func (b *Backend) GC() {}
