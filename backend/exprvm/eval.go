package exprvm

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"go.uber.org/zap"

	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/internal/arena"
	"github.com/buke/scriptx-go/internal/heap"
)

// scriptFunc is a function defined in expr: its body is evaluated with the
// parameters bound as variables, alongside the globals and "this".
type scriptFunc struct {
	params []string
	body   string
}

// errThrown marks an expr run aborted by a pending script exception.
var errThrown = errors.New("exprvm: script exception")

// =============================================================================
// EVALUATION
// =============================================================================

// Eval compiles source as an expr expression and runs it against the
// globals.
func (b *Backend) Eval(source, filename string) scriptx.Handle {
	return b.run(source, filename, nil)
}

// run evaluates source with the globals plus locals as variables.
func (b *Backend) run(source, filename string, locals map[string]any) scriptx.Handle {
	env, opts := b.environment(locals)
	program, err := expr.Compile(source, opts...)
	if err != nil {
		Logger().Debug("expr compile failed", zap.String("file", filename), zap.Error(err))
		b.RethrowException(&scriptx.Exception{Name: "SyntaxError", Message: err.Error(), Stack: filename})
		return nil
	}
	out, err := expr.Run(program, env)
	if b.Pending() != nil {
		return nil
	}
	if err != nil {
		b.RethrowException(&scriptx.Exception{Name: "Error", Message: err.Error(), Stack: filename})
		return nil
	}
	return b.fromGo(out)
}

// environment builds the variables and functions an expression sees.
// Global functions are registered with expr.Function so they can be called
// by name; everything else is a plain variable. Programs are compiled
// without a typed env, so names are resolved when the program runs and an
// unknown name reads as nil.
func (b *Backend) environment(locals map[string]any) (map[string]any, []expr.Option) {
	env := make(map[string]any)
	opts := []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.Function("throw", func(params ...any) (any, error) {
			msg := "uncaught exception"
			if len(params) > 0 {
				msg = fmt.Sprint(params[0])
			}
			b.Throw("Error", "%s", msg)
			return nil, errThrown
		}),
	}
	global := b.Global()
	for _, k := range global.Keys {
		if _, isLocal := locals[k]; isLocal {
			continue
		}
		h := heap.Handle(global.Props[k])
		if b.IsFunction(h) {
			opts = append(opts, expr.Function(k, b.callable(h)))
			continue
		}
		env[k] = b.toGo(h, map[arena.Ref]bool{})
	}
	for k, v := range locals {
		env[k] = v
	}
	return env, opts
}

// callable adapts a function value into a Go function expr can call.
func (b *Backend) callable(fn scriptx.Handle) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		args := make([]scriptx.Handle, len(params))
		for i, p := range params {
			args[i] = b.fromGo(p)
		}
		defer func() {
			for _, a := range args {
				b.DecRef(a)
			}
		}()
		res := b.CallN(fn, nil, args)
		defer b.DecRef(res)
		if b.Pending() != nil {
			return nil, errThrown
		}
		return b.toGo(res, map[arena.Ref]bool{}), nil
	}
}

// =============================================================================
// CALLS
// =============================================================================

func (b *Backend) Call0(fn, this scriptx.Handle) scriptx.Handle {
	return b.CallN(fn, this, nil)
}

func (b *Backend) Call1(fn, this, arg scriptx.Handle) scriptx.Handle {
	return b.CallN(fn, this, []scriptx.Handle{arg})
}

func (b *Backend) CallN(fn, this scriptx.Handle, args []scriptx.Handle) scriptx.Handle {
	f, ok := b.Get(fn).(*heap.Function)
	if !ok {
		b.Throw("TypeError", "value is not a function")
		return nil
	}
	if f.HostID != 0 {
		// the host has already made any failure pending
		res, _ := b.host.Invoke(f.HostID, this, args)
		return res
	}
	script := f.Target.(*scriptFunc)
	locals := make(map[string]any, len(script.params)+1)
	for i, p := range script.params {
		if i < len(args) {
			locals[p] = b.toGo(args[i], map[arena.Ref]bool{})
		} else {
			locals[p] = nil
		}
	}
	locals["this"] = b.toGo(this, map[arena.Ref]bool{})
	return b.run(script.body, "<function>", locals)
}

// NewScriptFunction defines a function in expr. Calling it evaluates body
// with params bound to the call's arguments.
func NewScriptFunction(sc *scriptx.EngineScope, params []string, body string) (scriptx.Function, error) {
	b, ok := sc.Engine().Backend().(*Backend)
	if !ok {
		return scriptx.Function{}, errors.New("exprvm: scope does not belong to an exprvm engine")
	}
	_, opts := b.environment(nil)
	if _, err := expr.Compile(body, opts...); err != nil {
		return scriptx.Function{}, &scriptx.Exception{Name: "SyntaxError", Message: err.Error()}
	}

	h := b.Insert(&heap.Function{Target: &scriptFunc{params: params, body: body}})
	fn, err := scriptx.AdoptAs[scriptx.Function](sc, h)
	if err != nil {
		b.DecRef(h)
	}
	return fn, err
}
