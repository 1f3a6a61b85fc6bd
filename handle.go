package jsembed

import (
	"fmt"

	quickjs "github.com/buke/quickjs-go"
)

// Handle is an owned reference to an engine-side object. Handles must be
// released explicitly; Clone produces an independent reference to the same
// object.
type Handle struct {
	eng *Engine
	val *quickjs.Value
}

// Clone returns a new handle on the same engine object.
func (h *Handle) Clone() *Handle {
	return &Handle{eng: h.eng, val: h.eng.dup(h.val)}
}

// Release drops the handle's reference. Safe to call more than once.
func (h *Handle) Release() {
	if h.val != nil {
		h.val.Free()
		h.val = nil
	}
}

// HasProperty reports whether the object has the named property, own or
// inherited.
func (h *Handle) HasProperty(name string) bool {
	return h.val.Has(name)
}

// Child returns a handle on the named property, creating an empty object
// there first if the property is absent. The caller releases the result.
func (h *Handle) Child(name string) *Handle {
	if !h.val.Has(name) {
		h.val.Set(name, h.eng.ctx.NewObject())
	}
	return &Handle{eng: h.eng, val: h.val.Get(name)}
}

// ChildIndex returns a handle on the element at the given index. Only
// meaningful on arrays.
func (h *Handle) ChildIndex(i int64) *Handle {
	return &Handle{eng: h.eng, val: h.val.GetIdx(i)}
}

// SetProperty writes a host value to the named property.
func (h *Handle) SetProperty(name string, v Value) {
	h.val.Set(name, h.eng.toEngine(v))
}

// SetIndex writes a host value at an array index.
func (h *Handle) SetIndex(i int64, v Value) {
	h.val.SetIdx(i, h.eng.toEngine(v))
}

// Get translates the referenced value to a host value. When the value is a
// live host binding the bound object itself is returned, preserving
// identity; otherwise the value converts by value.
func (h *Handle) Get() Value {
	hv, err := h.eng.toHost(h.val, nil)
	if err != nil {
		return Undefined()
	}
	return hv
}

// InvokeMethod calls the named method with the handle's object as receiver.
func (h *Handle) InvokeMethod(name string, args []Value) (Value, error) {
	fn := h.val.Get(name)
	defer fn.Free()
	if !fn.IsFunction() {
		return Undefined(), fmt.Errorf("invoke %q: not a function", name)
	}
	buf := newArgBuffer(h.eng, args)
	defer buf.free()
	ret := h.eng.ctx.Invoke(fn, h.val, buf.vals...)
	defer ret.Free()
	if ret.IsException() {
		return Undefined(), h.eng.takeException("invoke %q", name)
	}
	hv, err := h.eng.toHost(ret, nil)
	if err != nil {
		return Undefined(), err
	}
	return hv, nil
}

// Properties snapshots the object's own enumerable properties, in engine
// enumeration order, resolving each through Get so bound objects keep their
// identity.
func (h *Handle) Properties() *Object {
	out := NewObject()
	names, ok := h.eng.ownEnumerableKeys(h.val)
	if !ok {
		h.eng.clearException()
		return out
	}
	for _, name := range names {
		if name == bindingTag {
			continue
		}
		child := h.Child(name)
		out.Set(name, child.Get())
		child.Release()
	}
	return out
}

// IsArray reports whether the referenced value is an array.
func (h *Handle) IsArray() bool { return h.val.IsArray() }

// Size returns the array length, or 0 for non-arrays.
func (h *Handle) Size() int64 {
	if !h.val.IsArray() {
		return 0
	}
	return h.val.Len()
}
