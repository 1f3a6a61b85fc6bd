package jsembed

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"

	quickjs "github.com/buke/quickjs-go"
)

// ConversionError reports a failure while translating a value across the
// host/engine boundary, usually because a property access threw.
type ConversionError struct {
	msg string
}

func (e *ConversionError) Error() string { return e.msg }

func conversionError(format string, args ...any) *ConversionError {
	return &ConversionError{msg: fmt.Sprintf(format, args...)}
}

// toEngine translates a host value into an engine value. The translation is
// total: every host variant has an engine representation. The caller owns the
// returned reference.
func (e *Engine) toEngine(v Value) *quickjs.Value {
	switch v.Kind() {
	case KindVoid:
		return e.ctx.NewNull()
	case KindUndefined:
		return e.ctx.NewUndefined()
	case KindInt:
		return e.ctx.NewInt32(v.Int32())
	case KindInt64:
		return e.ctx.NewInt64(v.Int64())
	case KindDouble:
		return e.ctx.NewFloat64(v.Float64())
	case KindBool:
		return e.ctx.NewBool(v.Bool())
	case KindString:
		return e.newString(v.s)
	case KindArray:
		arr := e.ctx.Eval("[]")
		for i, item := range v.Array().Items() {
			arr.SetIdx(int64(i), e.toEngine(item))
		}
		return arr
	case KindObject:
		obj := e.ctx.NewObject()
		o := v.Object()
		for _, name := range o.Names() {
			obj.Set(name, e.toEngine(o.Get(name)))
		}
		return obj
	case KindFunc:
		fn := v.Fn()
		return e.ctx.NewFunction(func(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
			hostThis, _ := e.toHost(this, nil)
			hostArgs := make([]Value, len(args))
			for i, a := range args {
				hostArgs[i], _ = e.toHost(a, nil)
			}
			return e.toEngine(fn(hostThis, hostArgs))
		})
	}
	return e.ctx.NewUndefined()
}

// toHost translates an engine value into a host value. parent, when non-nil,
// is the object the value was read from; it becomes the receiver for any
// captured function. The input reference is borrowed, not consumed.
func (e *Engine) toHost(v *quickjs.Value, parent *quickjs.Value) (Value, error) {
	switch {
	case v == nil || v.IsUndefined():
		return Undefined(), nil
	case v.IsNull():
		return Void(), nil
	case v.IsNumber():
		return Double(v.ToFloat64()), nil
	case v.IsBool():
		return Bool(v.ToBool()), nil
	case v.IsString():
		return String(e.engineString(v)), nil
	case v.IsArray():
		return e.arrayToHost(v)
	case v.IsFunction():
		return e.captureFunction(v, parent), nil
	case v.IsObject():
		if hv, ok := e.boundObject(v); ok {
			return hv, nil
		}
		return e.objectToHost(v)
	}
	return Undefined(), nil
}

// newString builds an engine string. The binding constructs strings from
// C strings, which would truncate embedded NUL bytes, so those route through
// JSON (whose encoded text carries NULs as escapes).
func (e *Engine) newString(s string) *quickjs.Value {
	if !strings.Contains(s, "\x00") {
		return e.ctx.NewString(s)
	}
	enc, err := json.Marshal(s)
	if err != nil {
		return e.ctx.NewString(s)
	}
	return e.ctx.ParseJSON(string(enc))
}

// engineString reads an engine string losslessly. A C-string read that came
// up short of the script-side length means an embedded NUL truncated it; the
// value is then recovered through JSON.
func (e *Engine) engineString(v *quickjs.Value) string {
	s := v.ToString()
	if int64(len(utf16.Encode([]rune(s)))) == v.Len() {
		return s
	}
	und := e.ctx.NewUndefined()
	enc := e.ctx.Invoke(e.jsonFn, und, v)
	und.Free()
	defer enc.Free()
	if enc.IsException() {
		e.clearException()
		return s
	}
	var out string
	if err := json.Unmarshal([]byte(enc.ToString()), &out); err != nil {
		return s
	}
	return out
}

// hasOwnProperty tests for an own property without consulting the prototype
// chain, which the binding's Has would.
func (e *Engine) hasOwnProperty(v *quickjs.Value, name string) bool {
	und := e.ctx.NewUndefined()
	nameVal := e.ctx.NewString(name)
	ret := e.ctx.Invoke(e.hasOwnFn, und, v, nameVal)
	nameVal.Free()
	und.Free()
	if ret.IsException() {
		ret.Free()
		e.clearException()
		return false
	}
	ok := ret.ToBool()
	ret.Free()
	return ok
}

// boundObject recognizes engine objects that project a live host binding and
// returns the bound object itself, preserving identity instead of copying.
// The tag must be an own property; objects merely inheriting from a bound
// projection convert generically.
func (e *Engine) boundObject(v *quickjs.Value) (Value, bool) {
	if !e.hasOwnProperty(v, bindingTag) {
		return Value{}, false
	}
	idVal := v.Get(bindingTag)
	id := idVal.ToInt64()
	idVal.Free()
	if b := lookupBinding(id); b != nil && b.eng == e {
		return ObjectValue(b.obj), true
	}
	return Value{}, false
}

func (e *Engine) arrayToHost(v *quickjs.Value) (Value, error) {
	n := v.Len()
	out := NewArray()
	for i := int64(0); i < n; i++ {
		item := v.GetIdx(i)
		if item.IsException() {
			item.Free()
			return Undefined(), e.conversionFailed("reading array element")
		}
		hv, err := e.toHost(item, nil)
		item.Free()
		if err != nil {
			return Undefined(), err
		}
		out.Append(hv)
	}
	return ArrayValue(out), nil
}

// objectToHost walks the prototype chain collecting enumerable property
// names, then reads each through the object itself so accessors run. If
// enumeration fails at any level the result is an empty object.
func (e *Engine) objectToHost(v *quickjs.Value) (Value, error) {
	names, ok := e.collectPropertyNames(v)
	if !ok {
		e.clearException()
		return ObjectValue(NewObject()), nil
	}
	out := NewObject()
	for _, name := range names {
		child := v.Get(name)
		if child.IsException() {
			child.Free()
			return Undefined(), e.conversionFailed("reading property %q", name)
		}
		hv, err := e.toHost(child, v)
		child.Free()
		if err != nil {
			return Undefined(), err
		}
		out.Set(name, hv)
	}
	return ObjectValue(out), nil
}

func (e *Engine) collectPropertyNames(v *quickjs.Value) ([]string, bool) {
	var names []string
	seen := map[string]bool{}
	cur := e.dup(v)
	for {
		level, ok := e.ownEnumerableKeys(cur)
		if !ok {
			cur.Free()
			return nil, false
		}
		for _, n := range level {
			if n == bindingTag || seen[n] {
				continue
			}
			seen[n] = true
			names = append(names, n)
		}
		proto := e.prototypeOf(cur)
		cur.Free()
		if proto == nil {
			break
		}
		cur = proto
	}
	return names, true
}

// ownEnumerableKeys lists an object's own enumerable string keys in
// definition order. The binding's own enumeration would also return symbol
// and non-enumerable keys, so the listing goes through Object.keys instead.
func (e *Engine) ownEnumerableKeys(v *quickjs.Value) ([]string, bool) {
	und := e.ctx.NewUndefined()
	arr := e.ctx.Invoke(e.keysFn, und, v)
	und.Free()
	if arr.IsException() {
		arr.Free()
		return nil, false
	}
	defer arr.Free()
	n := arr.Len()
	keys := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		item := arr.GetIdx(i)
		keys = append(keys, item.ToString())
		item.Free()
	}
	return keys, true
}

// prototypeOf returns an owned reference to the prototype, or nil when the
// chain ends.
func (e *Engine) prototypeOf(v *quickjs.Value) *quickjs.Value {
	und := e.ctx.NewUndefined()
	proto := e.ctx.Invoke(e.protoFn, und, v)
	und.Free()
	if !proto.IsObject() {
		proto.Free()
		return nil
	}
	return proto
}

// captureFunction wraps an engine function in a host callable. The function
// and its receiver are retained until the engine closes. When the value was
// read off an object that object becomes the call receiver, otherwise the
// global object does.
func (e *Engine) captureFunction(fn *quickjs.Value, parent *quickjs.Value) Value {
	fnRef := e.dup(fn)
	var selfRef *quickjs.Value
	if parent != nil {
		selfRef = e.dup(parent)
	} else {
		selfRef = e.dup(e.ctx.Globals())
	}
	e.pin(fnRef)
	e.pin(selfRef)
	return FuncValue(func(this Value, args []Value) Value {
		buf := newArgBuffer(e, args)
		defer buf.free()
		ret := e.ctx.Invoke(fnRef, selfRef, buf.vals...)
		defer ret.Free()
		if ret.IsException() {
			e.clearException()
			return Undefined()
		}
		hv, err := e.toHost(ret, nil)
		if err != nil {
			return Undefined()
		}
		return hv
	})
}

// argBuffer converts call arguments up front and releases every engine
// reference in one place once the call returns.
type argBuffer struct {
	vals []*quickjs.Value
}

func newArgBuffer(e *Engine, args []Value) *argBuffer {
	b := &argBuffer{vals: make([]*quickjs.Value, len(args))}
	for i, a := range args {
		b.vals[i] = e.toEngine(a)
	}
	return b
}

func (b *argBuffer) free() {
	for _, v := range b.vals {
		v.Free()
	}
	b.vals = nil
}

// conversionFailed drains any pending engine exception into a ConversionError.
func (e *Engine) conversionFailed(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if e.ctx.HasException() {
		if err := e.ctx.Exception(); err != nil {
			return conversionError("%s: %s", msg, err.Error())
		}
	}
	return conversionError("%s", msg)
}

func (e *Engine) clearException() {
	if e.ctx.HasException() {
		_ = e.ctx.Exception()
	}
}
