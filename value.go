package jsembed

import (
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindVoid Kind = iota
	KindUndefined
	KindInt
	KindInt64
	KindDouble
	KindBool
	KindString
	KindArray
	KindObject
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindUndefined:
		return "undefined"
	case KindInt:
		return "int"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindFunc:
		return "func"
	}
	return "unknown"
}

// Func is a host-side callable that scripts can invoke. this carries the
// receiver the script used, or Undefined for a plain call.
type Func func(this Value, args []Value) Value

// Value is the host-side variant type exchanged with the script engine.
// Composite values (arrays, objects) are held by reference, so copies of a
// Value share the underlying container.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	arr  *Array
	obj  *Object
	fn   Func
}

func Void() Value { return Value{kind: KindVoid} }
func Undefined() Value { return Value{kind: KindUndefined} }
func Int(v int32) Value { return Value{kind: KindInt, i: int64(v)} }
func Int64(v int64) Value { return Value{kind: KindInt64, i: v} }
func Double(v float64) Value { return Value{kind: KindDouble, f: v} }
func Bool(v bool) Value {
	val := Value{kind: KindBool}
	if v {
		val.i = 1
	}
	return val
}
func String(v string) Value { return Value{kind: KindString, s: v} }
func ArrayValue(a *Array) Value { return Value{kind: KindArray, arr: a} }
func ObjectValue(o *Object) Value { return Value{kind: KindObject, obj: o} }
func FuncValue(fn Func) Value { return Value{kind: KindFunc, fn: fn} }

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsVoid() bool      { return v.kind == KindVoid }
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNumber() bool {
	return v.kind == KindInt || v.kind == KindInt64 || v.kind == KindDouble
}
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsString() bool { return v.kind == KindString }
func (v Value) IsArray() bool  { return v.kind == KindArray }
func (v Value) IsObject() bool { return v.kind == KindObject }
func (v Value) IsFunc() bool   { return v.kind == KindFunc }

// Int32 returns the value coerced to a 32-bit integer.
func (v Value) Int32() int32 { return int32(v.Int64()) }

// Int64 returns the value coerced to a 64-bit integer.
func (v Value) Int64() int64 {
	switch v.kind {
	case KindInt, KindInt64, KindBool:
		return v.i
	case KindDouble:
		return int64(v.f)
	case KindString:
		n, _ := strconv.ParseInt(v.s, 10, 64)
		return n
	}
	return 0
}

// Float64 returns the value coerced to a float.
func (v Value) Float64() float64 {
	switch v.kind {
	case KindInt, KindInt64, KindBool:
		return float64(v.i)
	case KindDouble:
		return v.f
	case KindString:
		f, _ := strconv.ParseFloat(v.s, 64)
		return f
	}
	return 0
}

// Bool returns the value coerced to a boolean.
func (v Value) Bool() bool {
	switch v.kind {
	case KindInt, KindInt64, KindBool:
		return v.i != 0
	case KindDouble:
		return v.f != 0
	case KindString:
		return v.s == "true" || v.s == "1"
	}
	return false
}

// Array returns the underlying array, or nil for non-array values.
func (v Value) Array() *Array { return v.arr }

// Object returns the underlying object, or nil for non-object values.
func (v Value) Object() *Object { return v.obj }

// Fn returns the underlying callable, or nil for non-function values.
func (v Value) Fn() Func { return v.fn }

// Call invokes a function value. Non-function values yield Undefined.
func (v Value) Call(this Value, args []Value) Value {
	if v.fn == nil {
		return Undefined()
	}
	return v.fn(this, args)
}

// String renders the value as display text, following script-style coercion.
func (v Value) String() string {
	switch v.kind {
	case KindVoid:
		return ""
	case KindUndefined:
		return "undefined"
	case KindInt, KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case KindString:
		return v.s
	case KindArray:
		if v.arr == nil {
			return "[]"
		}
		parts := make([]string, len(v.arr.items))
		for i, it := range v.arr.items {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		return "[object Object]"
	case KindFunc:
		return "function"
	}
	return ""
}

// Equal reports deep equality. Numbers compare by their float value
// regardless of the numeric variant they arrived in. Function values never
// compare equal.
func (v Value) Equal(other Value) bool {
	if v.IsNumber() && other.IsNumber() {
		return v.Float64() == other.Float64()
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindVoid, KindUndefined:
		return true
	case KindBool:
		return v.i == other.i
	case KindString:
		return v.s == other.s
	case KindArray:
		return v.arr.equal(other.arr)
	case KindObject:
		return v.obj.equal(other.obj)
	}
	return false
}

// Array is an ordered list of values.
type Array struct {
	items []Value
}

func NewArray(items ...Value) *Array {
	return &Array{items: append([]Value(nil), items...)}
}

func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.items)
}

func (a *Array) At(i int) Value {
	if a == nil || i < 0 || i >= len(a.items) {
		return Undefined()
	}
	return a.items[i]
}

func (a *Array) Set(i int, v Value) {
	if i >= 0 && i < len(a.items) {
		a.items[i] = v
	}
}

func (a *Array) Append(vals ...Value) { a.items = append(a.items, vals...) }

func (a *Array) Items() []Value {
	if a == nil {
		return nil
	}
	return a.items
}

func (a *Array) equal(b *Array) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := range a.items {
		if !a.items[i].Equal(b.items[i]) {
			return false
		}
	}
	return true
}

// Object is an insertion-ordered set of named properties. Updating an
// existing property keeps its original position.
type Object struct {
	names []string
	props map[string]Value
}

func NewObject() *Object {
	return &Object{props: make(map[string]Value)}
}

func (o *Object) Set(name string, v Value) {
	if _, ok := o.props[name]; !ok {
		o.names = append(o.names, name)
	}
	o.props[name] = v
}

// SetMethod registers a named callable on the object.
func (o *Object) SetMethod(name string, fn Func) { o.Set(name, FuncValue(fn)) }

func (o *Object) Get(name string) Value {
	if o == nil {
		return Void()
	}
	if v, ok := o.props[name]; ok {
		return v
	}
	return Void()
}

func (o *Object) Has(name string) bool {
	if o == nil {
		return false
	}
	_, ok := o.props[name]
	return ok
}

func (o *Object) Delete(name string) {
	if o == nil || !o.Has(name) {
		return
	}
	delete(o.props, name)
	for i, n := range o.names {
		if n == name {
			o.names = append(o.names[:i], o.names[i+1:]...)
			break
		}
	}
}

// Names returns property names in insertion order.
func (o *Object) Names() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.names...)
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.names)
}

// Invoke calls the named method with the given receiver. A missing or
// non-callable property yields Undefined.
func (o *Object) Invoke(name string, this Value, args []Value) Value {
	return o.Get(name).Call(this, args)
}

func (o *Object) equal(b *Object) bool {
	if o.Len() != b.Len() {
		return false
	}
	for i, n := range o.names {
		if b.names[i] != n || !o.props[n].Equal(b.props[n]) {
			return false
		}
	}
	return true
}
