package scriptx

import (
	"fmt"

	"go.uber.org/zap"
)

// trampoline is the FunctionHost every engine hands to its backend. Backend
// native functions carry only a capsule id and come back through here.
type trampoline struct {
	e *Engine
}

// Invoke runs the callback registered under id inside a nested scope.
func (t trampoline) Invoke(id int32, this Handle, args []Handle) (Handle, error) {
	e := t.e
	data, ok := e.store.Load(id)
	if !ok || data.engine != e {
		return nil, t.fail(newError(KindInvalidSelf, "invoke", "invalid 'self' for native method"))
	}

	sc, err := e.Enter()
	if err != nil {
		return nil, t.fail(err)
	}
	ret, err := t.run(data, &Arguments{engine: e, scope: sc, this: this, args: args})
	var out Handle
	if err == nil {
		// the result must outlive the nested scope
		out, err = e.argument(ret)
		if err == nil && out != nil {
			out = e.backend.IncRef(out)
		}
	}
	if exitErr := sc.Exit(); exitErr != nil && err == nil {
		err = exitErr
	}
	if err != nil {
		if out != nil {
			e.backend.DecRef(out)
		}
		return nil, t.fail(err)
	}
	return out, nil
}

// run calls the host callback, turning a panic into an error.
func (t trampoline) run(data *FunctionData, args *Arguments) (ret Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.e.logger.Error("host function panicked", zap.Int32("id", data.id), zap.Any("panic", r))
			err = &Exception{Name: "Error", Message: fmt.Sprintf("host function panicked: %v", r)}
		}
	}()
	return data.callback(args)
}

// fail makes err the pending native error and returns it.
func (t trampoline) fail(err error) error {
	exc := AsException(err)
	t.e.backend.RethrowException(exc)
	return exc
}

// Finalize drops the capsule registered under id. Only the first call for an
// id has an effect.
func (t trampoline) Finalize(id int32) {
	if t.e.store.Delete(id) {
		t.e.logger.Debug("function finalized", zap.Int32("id", id))
	}
}
