package jsembed

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	quickjs "github.com/buke/quickjs-go"
	"go.uber.org/zap"
)

// helper scripts evaluated once per engine. Keeping these as engine-side
// functions avoids re-parsing glue on every conversion.
const (
	dupScript    = "(v => v)"
	protoScript  = "(v => { const p = Object.getPrototypeOf(v); return p === null ? undefined : p; })"
	defineScript = `((obj, descs) => {
	for (const d of descs)
		Object.defineProperty(obj, d.name, { configurable: true, enumerable: true, get: d.get, set: d.set });
})`
	finRegScript = "(cb => new FinalizationRegistry(cb))"
	// The binding id rides along as a non-enumerable property so scripts
	// cannot copy it onto unrelated objects with Object.assign or spreads.
	tagScript = "((obj, id) => { Object.defineProperty(obj, '" + bindingTag + "', { value: id }); })"
	// Own enumerable string keys only. The binding's own property
	// enumeration includes symbols and non-enumerable names, which would
	// sweep Object.prototype builtins into every converted object.
	keysScript   = "(v => Object.keys(v))"
	hasOwnScript = "((o, k) => Object.prototype.hasOwnProperty.call(o, k))"
	jsonScript   = "(v => JSON.stringify(v))"
)

// Engine hosts a script context with host/engine value translation, native
// object binding and cooperative timeouts. An Engine is not safe for
// concurrent use; all calls must come from one goroutine at a time. Stop is
// the one exception.
type Engine struct {
	ctx *quickjs.Context
	log *zap.Logger

	// deadline is the absolute cutoff in unix nanoseconds, or 0 when the
	// watchdog is disarmed. The interrupt handler polls it.
	deadline atomic.Int64

	closeRuntime func()
	closed       bool

	dupFn    *quickjs.Value
	protoFn  *quickjs.Value
	defineFn *quickjs.Value
	tagFn    *quickjs.Value
	keysFn   *quickjs.Value
	hasOwnFn *quickjs.Value
	jsonFn   *quickjs.Value
	finReg   *quickjs.Value

	// captured holds engine references pinned by host callables produced
	// from script functions. Released at Close.
	captured []*quickjs.Value
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger routes engine diagnostics through the given logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine with a fresh runtime and context.
func New(opts ...Option) (*Engine, error) {
	rt := quickjs.NewRuntime()
	ctx := rt.NewContext()
	e := &Engine{
		ctx:          ctx,
		log:          zap.NewNop(),
		closeRuntime: rt.Close,
	}
	for _, opt := range opts {
		opt(e)
	}

	rt.SetInterruptHandler(func() int {
		dl := e.deadline.Load()
		if dl != 0 && time.Now().UnixNano() >= dl {
			return 1
		}
		return 0
	})

	var err error
	if e.dupFn, err = e.evalHelper(dupScript); err != nil {
		e.Close()
		return nil, err
	}
	if e.protoFn, err = e.evalHelper(protoScript); err != nil {
		e.Close()
		return nil, err
	}
	if e.defineFn, err = e.evalHelper(defineScript); err != nil {
		e.Close()
		return nil, err
	}
	if e.tagFn, err = e.evalHelper(tagScript); err != nil {
		e.Close()
		return nil, err
	}
	if e.keysFn, err = e.evalHelper(keysScript); err != nil {
		e.Close()
		return nil, err
	}
	if e.hasOwnFn, err = e.evalHelper(hasOwnScript); err != nil {
		e.Close()
		return nil, err
	}
	if e.jsonFn, err = e.evalHelper(jsonScript); err != nil {
		e.Close()
		return nil, err
	}
	e.initFinalizationRegistry()
	return e, nil
}

func (e *Engine) evalHelper(code string) (*quickjs.Value, error) {
	v := e.ctx.Eval(code)
	if v.IsException() {
		v.Free()
		return nil, e.takeException("initializing engine helpers")
	}
	return v, nil
}

func (e *Engine) initFinalizationRegistry() {
	mk := e.ctx.Eval(finRegScript)
	if mk.IsException() {
		mk.Free()
		e.clearException()
		e.log.Debug("finalization registry unavailable, bindings release at close")
		return
	}
	cb := e.ctx.NewFunction(func(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
		if len(args) > 0 {
			releaseBinding(args[0].ToInt64())
		}
		return ctx.NewUndefined()
	})
	und := e.ctx.NewUndefined()
	reg := e.ctx.Invoke(mk, und, cb)
	und.Free()
	cb.Free()
	mk.Free()
	if reg.IsException() {
		reg.Free()
		e.clearException()
		return
	}
	e.finReg = reg
}

// dup returns a fresh owned reference to the same engine value.
func (e *Engine) dup(v *quickjs.Value) *quickjs.Value {
	und := e.ctx.NewUndefined()
	out := e.ctx.Invoke(e.dupFn, und, v)
	und.Free()
	return out
}

func (e *Engine) pin(v *quickjs.Value) { e.captured = append(e.captured, v) }

// armDeadline sets the cooperative cutoff for one execution. timeout <= 0
// disarms the watchdog entirely.
func (e *Engine) armDeadline(timeout time.Duration) {
	if timeout <= 0 {
		e.deadline.Store(0)
		return
	}
	e.deadline.Store(time.Now().Add(timeout).UnixNano())
}

// Stop aborts the currently running execution from any goroutine by forcing
// the deadline into the past. The next interrupt poll terminates the script.
// Executions started afterwards are unaffected.
func (e *Engine) Stop() {
	e.deadline.Store(1)
}

// Evaluate runs a script and returns its completion value translated to a
// host value. A positive timeout bounds execution time.
func (e *Engine) Evaluate(code string, timeout time.Duration) (Value, error) {
	e.armDeadline(timeout)
	ret := e.ctx.Eval(code, quickjs.EvalFileName("input"))
	defer ret.Free()
	if ret.IsException() {
		return Undefined(), e.takeException("evaluate")
	}
	hv, err := e.toHost(ret, nil)
	if err != nil {
		return Undefined(), err
	}
	return hv, nil
}

// Execute runs a script for its side effects, discarding the result.
func (e *Engine) Execute(code string, timeout time.Duration) error {
	e.armDeadline(timeout)
	ret := e.ctx.Eval(code, quickjs.EvalFileName("input"))
	defer ret.Free()
	if ret.IsException() {
		return e.takeException("execute")
	}
	return nil
}

// CallFunction invokes a function defined in the global scope by name, with
// the global object as receiver.
func (e *Engine) CallFunction(name string, args []Value, timeout time.Duration) (Value, error) {
	e.armDeadline(timeout)
	globals := e.ctx.Globals()
	fn := globals.Get(name)
	defer fn.Free()
	if !fn.IsFunction() {
		return Undefined(), fmt.Errorf("call %q: not a function", name)
	}
	buf := newArgBuffer(e, args)
	defer buf.free()
	ret := e.ctx.Invoke(fn, globals, buf.vals...)
	defer ret.Free()
	if ret.IsException() {
		return Undefined(), e.takeException("call %q", name)
	}
	hv, err := e.toHost(ret, nil)
	if err != nil {
		return Undefined(), err
	}
	return hv, nil
}

// SetGlobal assigns a host value to a global variable.
func (e *Engine) SetGlobal(name string, v Value) {
	e.ctx.Globals().Set(name, e.toEngine(v))
}

// Root returns a handle on the global object. The caller releases it.
func (e *Engine) Root() *Handle {
	return &Handle{eng: e, val: e.dup(e.ctx.Globals())}
}

// RootProperties snapshots the global scope's own enumerable properties as
// an ordered host object.
func (e *Engine) RootProperties() *Object {
	root := e.Root()
	defer root.Release()
	return root.Properties()
}

// Close releases every engine reference the host still holds, then tears
// down the context and runtime. The engine is unusable afterwards.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	for _, v := range e.captured {
		v.Free()
	}
	e.captured = nil
	helpers := []**quickjs.Value{
		&e.dupFn, &e.protoFn, &e.defineFn, &e.tagFn,
		&e.keysFn, &e.hasOwnFn, &e.jsonFn, &e.finReg,
	}
	for _, v := range helpers {
		if *v != nil {
			(*v).Free()
			*v = nil
		}
	}
	releaseEngineBindings(e)
	e.ctx.Close()
	e.closeRuntime()
}

// takeException drains the pending engine exception into a Go error.
func (e *Engine) takeException(format string, args ...any) error {
	op := fmt.Sprintf(format, args...)
	if e.ctx.HasException() {
		if err := e.ctx.Exception(); err != nil {
			e.log.Debug("script exception", zap.String("op", op), zap.Error(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, errors.New("script raised a non-error value"))
}
