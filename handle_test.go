package jsembed

import "testing"

func TestChildAutoCreates(t *testing.T) {
	e := newTestEngine(t)

	root := e.Root()
	defer root.Release()

	h := root.Child("fresh")
	defer h.Release()

	got, err := e.Evaluate("typeof fresh", testTimeout)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.String() != "object" {
		t.Errorf("typeof fresh = %q, want %q", got.String(), "object")
	}
}

func TestChildReturnsExisting(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Execute("globalThis.cfg = { mode: 'fast' }", testTimeout); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	root := e.Root()
	defer root.Release()

	h := root.Child("cfg")
	defer h.Release()
	if !h.HasProperty("mode") {
		t.Fatal("existing object was replaced instead of reused")
	}
	if got := h.Get().Object().Get("mode").String(); got != "fast" {
		t.Errorf("mode = %q, want %q", got, "fast")
	}
}

func TestSetProperty(t *testing.T) {
	e := newTestEngine(t)

	root := e.Root()
	defer root.Release()
	root.SetProperty("flag", Bool(true))

	got, err := e.Evaluate("flag === true", testTimeout)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got.Bool() {
		t.Error("SetProperty value not visible to scripts")
	}
}

func TestInvokeMethod(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Execute("globalThis.calc = { base: 10, plus(x) { return this.base + x; } }", testTimeout); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	root := e.Root()
	defer root.Release()
	h := root.Child("calc")
	defer h.Release()

	got, err := h.InvokeMethod("plus", []Value{Int(5)})
	if err != nil {
		t.Fatalf("InvokeMethod: %v", err)
	}
	if got.Float64() != 15 {
		t.Errorf("plus(5) = %v, want 15", got)
	}
}

func TestInvokeMethodMissing(t *testing.T) {
	e := newTestEngine(t)

	root := e.Root()
	defer root.Release()
	h := root.Child("empty")
	defer h.Release()

	if _, err := h.InvokeMethod("nothere", nil); err == nil {
		t.Fatal("expected error invoking a missing method")
	}
}

func TestPropertiesOrder(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Execute("globalThis.o = { c: 3, a: 1, b: 2 }", testTimeout); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	root := e.Root()
	defer root.Release()
	h := root.Child("o")
	defer h.Release()

	names := h.Properties().Names()
	want := []string{"c", "a", "b"}
	if len(names) != len(want) {
		t.Fatalf("got %d names, want %d", len(names), len(want))
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("names[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestArrayHandle(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Execute("globalThis.list = [10, 20, 30]", testTimeout); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	root := e.Root()
	defer root.Release()
	h := root.Child("list")
	defer h.Release()

	if !h.IsArray() {
		t.Fatal("IsArray() = false, want true")
	}
	if h.Size() != 3 {
		t.Errorf("Size() = %d, want 3", h.Size())
	}

	el := h.ChildIndex(1)
	defer el.Release()
	if got := el.Get().Float64(); got != 20 {
		t.Errorf("list[1] = %v, want 20", got)
	}

	h.SetIndex(2, Int(99))
	got, err := e.Evaluate("list[2]", testTimeout)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Float64() != 99 {
		t.Errorf("list[2] = %v, want 99", got)
	}
}

func TestCloneOutlivesOriginal(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Execute("globalThis.o = { v: 1 }", testTimeout); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	root := e.Root()
	h := root.Child("o")
	clone := h.Clone()
	h.Release()
	root.Release()

	defer clone.Release()
	if !clone.HasProperty("v") {
		t.Error("clone became invalid after original was released")
	}
}

func TestReleaseTwice(t *testing.T) {
	e := newTestEngine(t)

	root := e.Root()
	root.Release()
	root.Release() // must be a no-op
}
