package jsembed

import "testing"

// newCounter builds a host object with a count property and an increment
// method that mutates the live host object.
func newCounter() *Object {
	counter := NewObject()
	counter.Set("count", Int64(0))
	counter.SetMethod("increment", func(this Value, args []Value) Value {
		o := this.Object()
		o.Set("count", Int64(o.Get("count").Int64()+1))
		return Undefined()
	})
	return counter
}

func TestRegisterObjectMethodMutatesHost(t *testing.T) {
	e := newTestEngine(t)

	counter := newCounter()
	if err := e.RegisterObject("counter", counter); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}
	if err := e.Execute("counter.increment(); counter.increment();", testTimeout); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := counter.Get("count").Int64(); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}

func TestRegisterObjectScriptReadsBack(t *testing.T) {
	e := newTestEngine(t)

	counter := newCounter()
	if err := e.RegisterObject("obj", counter); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}
	got, err := e.Evaluate("obj.increment(); obj.increment(); obj.count", testTimeout)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Float64() != 2 {
		t.Errorf("obj.count = %v, want 2", got)
	}
}

func TestBoundPropertyReadsLiveState(t *testing.T) {
	e := newTestEngine(t)

	obj := NewObject()
	obj.Set("status", String("initial"))
	if err := e.RegisterObject("state", obj); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	obj.Set("status", String("updated"))
	got, err := e.Evaluate("state.status", testTimeout)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.String() != "updated" {
		t.Errorf("state.status = %q, want %q (reads must hit the live object)", got.String(), "updated")
	}
}

func TestBoundPropertyScriptWrite(t *testing.T) {
	e := newTestEngine(t)

	obj := NewObject()
	obj.Set("level", Int(1))
	if err := e.RegisterObject("cfg", obj); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	if err := e.Execute("cfg.level = 9", testTimeout); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := obj.Get("level").Float64(); got != 9 {
		t.Errorf("level = %v, want 9 (writes must reach the host object)", got)
	}
}

func TestNestedObjectBinding(t *testing.T) {
	e := newTestEngine(t)

	child := NewObject()
	child.Set("value", Int(5))
	parent := NewObject()
	parent.Set("child", ObjectValue(child))
	if err := e.RegisterObject("root", parent); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	got, err := e.Evaluate("root.child.value", testTimeout)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Float64() != 5 {
		t.Errorf("root.child.value = %v, want 5", got)
	}

	if err := e.Execute("root.child.value = 6", testTimeout); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := child.Get("value").Float64(); got != 6 {
		t.Errorf("child value = %v, want 6", got)
	}
}

func TestMethodReceiverIsHostObject(t *testing.T) {
	e := newTestEngine(t)

	obj := NewObject()
	var receiver *Object
	obj.SetMethod("check", func(this Value, args []Value) Value {
		receiver = this.Object()
		return Undefined()
	})
	if err := e.RegisterObject("probe", obj); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}
	if err := e.Execute("probe.check()", testTimeout); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if receiver != obj {
		t.Error("method receiver is not the bound host object")
	}
}

func TestOrdinalStability(t *testing.T) {
	obj := NewObject()
	b := newObjectBinding(nil, obj)
	defer releaseBinding(b.id)

	if got := b.ordinal("alpha"); got != 0 {
		t.Errorf("ordinal(alpha) = %d, want 0", got)
	}
	if got := b.ordinal("beta"); got != 1 {
		t.Errorf("ordinal(beta) = %d, want 1", got)
	}
	// Repeated lookups keep the assigned slot.
	if got := b.ordinal("alpha"); got != 0 {
		t.Errorf("ordinal(alpha) second lookup = %d, want 0", got)
	}
	if got := b.name(1); got != "beta" {
		t.Errorf("name(1) = %q, want %q", got, "beta")
	}
	if got := b.name(99); got != "" {
		t.Errorf("name(99) = %q, want empty", got)
	}
}

func TestHandleGetPreservesBindingIdentity(t *testing.T) {
	e := newTestEngine(t)

	obj := NewObject()
	obj.Set("x", Int(1))
	if err := e.RegisterObject("bound", obj); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	root := e.Root()
	defer root.Release()
	h := root.Child("bound")
	defer h.Release()

	got := h.Get()
	if got.Object() != obj {
		t.Error("handle Get must return the live bound object, not a copy")
	}
}

func TestConversionSkipsBindingBookkeeping(t *testing.T) {
	e := newTestEngine(t)

	obj := NewObject()
	obj.Set("x", Int(1))
	if err := e.RegisterObject("bound", obj); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	// The bookkeeping tag is non-enumerable, so shallow copies carry only
	// the real properties and convert as plain objects.
	got, err := e.Evaluate("Object.assign({}, bound)", testTimeout)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	o := got.Object()
	if o == obj {
		t.Error("a shallow copy must not resolve to the live binding")
	}
	if o.Has(bindingTag) {
		t.Error("internal bookkeeping property leaked into a converted object")
	}
	if o.Get("x").Float64() != 1 {
		t.Errorf("x = %v, want 1", o.Get("x"))
	}
}

// Inheriting from a bound projection must not make an object pass for the
// binding itself; the tag only counts as an own property.
func TestObjectInheritingFromBindingConvertsGenerically(t *testing.T) {
	e := newTestEngine(t)

	obj := NewObject()
	obj.Set("x", Int(1))
	if err := e.RegisterObject("bound", obj); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	got, err := e.Evaluate("Object.create(bound)", testTimeout)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	o := got.Object()
	if o == nil {
		t.Fatalf("result kind = %v, want object", got.Kind())
	}
	if o == obj {
		t.Fatal("object inheriting from a binding resolved to the live host object")
	}
	// The inherited accessor is still readable through the chain.
	if o.Get("x").Float64() != 1 {
		t.Errorf("x = %v, want 1", o.Get("x"))
	}
}

func countBindingsFor(e *Engine) int {
	liveMu.Lock()
	defer liveMu.Unlock()
	n := 0
	for _, b := range liveBindings {
		if b.eng == e {
			n++
		}
	}
	return n
}

func TestFailedRegistrationReleasesWholeSubtree(t *testing.T) {
	e := newTestEngine(t)

	// Swap the accessor installer for one that throws, so binding any
	// object with a plain property fails after its children registered.
	goodDefine := e.defineFn
	e.defineFn = e.ctx.Eval("(() => { throw new Error('install refused'); })")
	defer func() {
		e.defineFn.Free()
		e.defineFn = goodDefine
	}()

	child := NewObject()
	child.Set("v", Int(1))
	parent := NewObject()
	parent.Set("child", ObjectValue(child))

	before := countBindingsFor(e)
	if err := e.RegisterObject("p", parent); err == nil {
		t.Fatal("expected registration to fail")
	}
	if after := countBindingsFor(e); after != before {
		t.Errorf("%d bindings left registered after failure, want %d", after, before)
	}
}

func TestEvaluateReturnsBoundObjectIdentity(t *testing.T) {
	e := newTestEngine(t)

	obj := NewObject()
	obj.Set("x", Int(1))
	if err := e.RegisterObject("bound", obj); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}
	got, err := e.Evaluate("bound", testTimeout)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Object() != obj {
		t.Error("evaluating a bound object must return the live host object")
	}
}
