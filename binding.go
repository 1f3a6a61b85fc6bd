package jsembed

import (
	"sync"
	"sync/atomic"

	quickjs "github.com/buke/quickjs-go"
	"go.uber.org/zap"
)

// bindingTag is the reserved bookkeeping property stamped on every bound
// engine object. It holds the binding id and is skipped when converting
// objects back to host values.
const bindingTag = "__jsembed_binding__"

// objectBinding ties a live host object to its engine-side projection.
// Property access from scripts is dispatched through ordinals so renamed or
// reordered host properties keep stable dispatch slots.
type objectBinding struct {
	eng *Engine
	obj *Object
	id  int64

	ordinals map[string]int16
	names    []string
}

var (
	liveMu        sync.Mutex
	liveBindings  = map[int64]*objectBinding{}
	nextBindingID atomic.Int64
)

func newObjectBinding(e *Engine, obj *Object) *objectBinding {
	b := &objectBinding{
		eng:      e,
		obj:      obj,
		id:       nextBindingID.Add(1),
		ordinals: make(map[string]int16),
	}
	liveMu.Lock()
	liveBindings[b.id] = b
	liveMu.Unlock()
	return b
}

func lookupBinding(id int64) *objectBinding {
	liveMu.Lock()
	defer liveMu.Unlock()
	return liveBindings[id]
}

func releaseBinding(id int64) {
	liveMu.Lock()
	delete(liveBindings, id)
	liveMu.Unlock()
}

func releaseEngineBindings(e *Engine) {
	liveMu.Lock()
	for id, b := range liveBindings {
		if b.eng == e {
			delete(liveBindings, id)
		}
	}
	liveMu.Unlock()
}

// ordinal returns the stable slot for a property name, assigning one on
// first use. A name keeps its ordinal for the binding's lifetime.
func (b *objectBinding) ordinal(name string) int16 {
	if ord, ok := b.ordinals[name]; ok {
		return ord
	}
	ord := int16(len(b.names))
	b.ordinals[name] = ord
	b.names = append(b.names, name)
	return ord
}

func (b *objectBinding) name(ord int16) string {
	if int(ord) < 0 || int(ord) >= len(b.names) {
		return ""
	}
	return b.names[ord]
}

// RegisterObject exposes a host object to scripts under the given global
// name. Plain properties become accessor pairs reading and writing the live
// host object, callables become methods, and nested objects are bound
// recursively. The object stays owned by the host; scripts always observe
// its current state.
func (e *Engine) RegisterObject(name string, obj *Object) error {
	globals := e.ctx.Globals()
	return e.bindObjectInto(name, obj, globals)
}

// bindObjectInto binds obj and its nested objects under parent, releasing
// every binding the subtree registered if any level fails.
func (e *Engine) bindObjectInto(name string, obj *Object, parent *quickjs.Value) error {
	var ids []int64
	if err := e.bindObject(name, obj, parent, &ids); err != nil {
		for _, id := range ids {
			releaseBinding(id)
		}
		return err
	}
	return nil
}

func (e *Engine) bindObject(name string, obj *Object, parent *quickjs.Value, ids *[]int64) error {
	b := newObjectBinding(e, obj)
	*ids = append(*ids, b.id)
	jsObj := e.ctx.NewObject()
	und := e.ctx.NewUndefined()
	idVal := e.ctx.NewInt64(b.id)
	tagged := e.ctx.Invoke(e.tagFn, und, jsObj, idVal)
	tagged.Free()
	idVal.Free()
	und.Free()

	descs := e.ctx.Eval("[]")
	nDescs := int64(0)
	for _, propName := range obj.Names() {
		pv := obj.Get(propName)
		ord := b.ordinal(propName)
		switch {
		case pv.IsFunc():
			jsObj.Set(propName, e.ctx.NewFunction(b.methodDispatcher(ord)))
		case pv.IsObject():
			if err := e.bindObject(propName, pv.Object(), jsObj, ids); err != nil {
				descs.Free()
				jsObj.Free()
				return err
			}
		default:
			d := e.ctx.NewObject()
			d.Set("name", e.ctx.NewString(propName))
			d.Set("get", e.ctx.NewFunction(b.getDispatcher(ord)))
			d.Set("set", e.ctx.NewFunction(b.setDispatcher(ord)))
			descs.SetIdx(nDescs, d)
			nDescs++
		}
	}
	if nDescs > 0 {
		und = e.ctx.NewUndefined()
		ret := e.ctx.Invoke(e.defineFn, und, jsObj, descs)
		und.Free()
		if ret.IsException() {
			ret.Free()
			descs.Free()
			jsObj.Free()
			return e.takeException("binding object %q", name)
		}
		ret.Free()
	}
	descs.Free()

	e.watchForCollection(jsObj, b.id)
	parent.Set(name, jsObj)
	e.log.Debug("bound host object", zap.String("name", name), zap.Int64("binding", b.id))
	return nil
}

// watchForCollection registers the projection with the finalization registry
// so the binding table entry is dropped once the engine collects the object.
// Engines without FinalizationRegistry fall back to cleanup at Close.
func (e *Engine) watchForCollection(jsObj *quickjs.Value, id int64) {
	if e.finReg == nil {
		return
	}
	idVal := e.ctx.NewInt64(id)
	ret := e.finReg.Call("register", jsObj, idVal)
	ret.Free()
	idVal.Free()
}

func (b *objectBinding) getDispatcher(ord int16) func(*quickjs.Context, *quickjs.Value, []*quickjs.Value) *quickjs.Value {
	return func(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
		return b.eng.toEngine(b.obj.Get(b.name(ord)))
	}
}

func (b *objectBinding) setDispatcher(ord int16) func(*quickjs.Context, *quickjs.Value, []*quickjs.Value) *quickjs.Value {
	return func(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
		if len(args) > 0 {
			hv, _ := b.eng.toHost(args[0], nil)
			b.obj.Set(b.name(ord), hv)
		}
		return ctx.NewUndefined()
	}
}

func (b *objectBinding) methodDispatcher(ord int16) func(*quickjs.Context, *quickjs.Value, []*quickjs.Value) *quickjs.Value {
	return func(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
		hostArgs := make([]Value, len(args))
		for i, a := range args {
			hostArgs[i], _ = b.eng.toHost(a, nil)
		}
		res := b.obj.Invoke(b.name(ord), ObjectValue(b.obj), hostArgs)
		return b.eng.toEngine(res)
	}
}
