package jsembed

// cursorStep is one link in a cursor's path: either a property name or an
// array index.
type cursorStep struct {
	name    string
	index   int64
	isIndex bool
}

// Cursor addresses a location in the engine's object graph by a path of
// property names and array indices. The path is recorded, not resolved:
// every operation resolves it against the current state of the graph, so a
// cursor stays meaningful across mutations. Cursors are cheap values; Child
// and ChildIndex derive extended cursors without touching the engine.
//
// A cursor borrows its root handle and is valid only while that handle is.
type Cursor struct {
	root *Handle
	path []cursorStep
}

// Cursor returns a cursor rooted at this handle with an empty path.
func (h *Handle) Cursor() Cursor {
	return Cursor{root: h}
}

// Child derives a cursor one property deeper.
func (c Cursor) Child(name string) Cursor {
	path := make([]cursorStep, len(c.path), len(c.path)+1)
	copy(path, c.path)
	return Cursor{root: c.root, path: append(path, cursorStep{name: name})}
}

// ChildIndex derives a cursor addressing an array element.
func (c Cursor) ChildIndex(i int64) Cursor {
	path := make([]cursorStep, len(c.path), len(c.path)+1)
	copy(path, c.path)
	return Cursor{root: c.root, path: append(path, cursorStep{index: i, isIndex: true})}
}

// resolveStep follows one path step strictly: a name must already exist and
// an index must be in bounds, otherwise resolution fails.
func resolveStep(obj *Handle, step cursorStep) (*Handle, bool) {
	if step.isIndex {
		if !obj.IsArray() || step.index < 0 || step.index >= obj.Size() {
			return nil, false
		}
		return obj.ChildIndex(step.index), true
	}
	if !obj.HasProperty(step.name) {
		return nil, false
	}
	return obj.Child(step.name), true
}

// resolveParent walks every step except the last, returning an owned handle
// on the parent of the addressed location plus the final step (nil for an
// empty path). ok is false when any walked step fails to resolve.
func (c Cursor) resolveParent() (parent *Handle, last *cursorStep, ok bool) {
	obj := c.root.Clone()
	for i := 0; i < len(c.path)-1; i++ {
		next, stepOK := resolveStep(obj, c.path[i])
		obj.Release()
		if !stepOK {
			return nil, nil, false
		}
		obj = next
	}
	if len(c.path) == 0 {
		return obj, nil, true
	}
	return obj, &c.path[len(c.path)-1], true
}

// IsValid reports whether every step but the last currently resolves.
func (c Cursor) IsValid() bool {
	parent, _, ok := c.resolveParent()
	if ok {
		parent.Release()
	}
	return ok
}

// Get reads the addressed value, or Undefined when the path does not
// resolve.
func (c Cursor) Get() Value {
	parent, last, ok := c.resolveParent()
	if !ok {
		return Undefined()
	}
	defer parent.Release()
	if last == nil {
		return parent.Get()
	}
	target, ok := resolveStep(parent, *last)
	if !ok {
		return Undefined()
	}
	defer target.Release()
	return target.Get()
}

// Set writes a host value at the addressed location. Writing through an
// unresolvable path, or through an empty path, is a no-op. The final step
// itself writes unconditionally: an index past the end grows the array, as
// a script assignment would.
func (c Cursor) Set(v Value) {
	parent, last, ok := c.resolveParent()
	if !ok {
		return
	}
	defer parent.Release()
	if last == nil {
		return
	}
	if last.isIndex {
		parent.SetIndex(last.index, v)
		return
	}
	parent.SetProperty(last.name, v)
}

// GetOrCreateObject materializes the addressed location as an object,
// creating the final property if missing, and returns an owned handle on
// it. Intermediate steps must already resolve; a final index step must be in
// bounds. Returns nil when the path cannot be satisfied.
func (c Cursor) GetOrCreateObject() *Handle {
	parent, last, ok := c.resolveParent()
	if !ok {
		return nil
	}
	if last == nil {
		return parent
	}
	defer parent.Release()
	if last.isIndex {
		if !parent.IsArray() || last.index < 0 || last.index >= parent.Size() {
			return nil
		}
		return parent.ChildIndex(last.index)
	}
	return parent.Child(last.name)
}

// Invoke calls the addressed property as a method of its parent object. The
// path must be non-empty and end in a name step.
func (c Cursor) Invoke(args []Value) (Value, error) {
	parent, last, ok := c.resolveParent()
	if !ok {
		return Undefined(), conversionError("cursor path does not resolve")
	}
	defer parent.Release()
	if last == nil || last.isIndex {
		return Undefined(), conversionError("cursor does not address a named method")
	}
	return parent.InvokeMethod(last.name, args)
}

// IsArray reports whether the addressed value currently resolves to an
// array.
func (c Cursor) IsArray() bool {
	parent, last, ok := c.resolveParent()
	if !ok {
		return false
	}
	defer parent.Release()
	if last == nil {
		return parent.IsArray()
	}
	target, ok := resolveStep(parent, *last)
	if !ok {
		return false
	}
	defer target.Release()
	return target.IsArray()
}
