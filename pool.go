package jsembed

import (
	"fmt"
	"sync"
)

// SetupFunc prepares a freshly created engine before it enters a pool,
// typically by registering host objects or running a prelude script.
type SetupFunc func(*Engine) error

// Pool manages a fixed-size set of pre-warmed engines. Acquire blocks until
// an engine is free; Release returns it. Engines keep their global state
// between uses, so setup-installed bindings stay in place.
type Pool struct {
	engines chan *Engine
	size    int
	mu      sync.Mutex
	closed  bool
}

// NewPool creates size engines, runs every setup function on each, and
// makes them available for acquisition.
func NewPool(size int, setupFns []SetupFunc, opts ...Option) (*Pool, error) {
	p := &Pool{
		engines: make(chan *Engine, size),
		size:    size,
	}
	for i := 0; i < size; i++ {
		e, err := newPoolEngine(setupFns, opts...)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("creating pool engine %d: %w", i, err)
		}
		p.engines <- e
	}
	return p, nil
}

func newPoolEngine(setupFns []SetupFunc, opts ...Option) (*Engine, error) {
	e, err := New(opts...)
	if err != nil {
		return nil, err
	}
	for _, setup := range setupFns {
		if err := setup(e); err != nil {
			e.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	return e, nil
}

// Acquire takes an engine from the pool. Blocks until one is available.
func (p *Pool) Acquire() (*Engine, error) {
	e, ok := <-p.engines
	if !ok {
		return nil, fmt.Errorf("engine pool is closed")
	}
	return e, nil
}

// Release returns an engine to the pool. Engines released into a closed or
// full pool are shut down instead.
func (p *Pool) Release(e *Engine) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		e.Close()
		return
	}
	select {
	case p.engines <- e:
	default:
		e.Close()
	}
}

// Close shuts down every pooled engine. Engines currently acquired are
// closed when released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	for {
		select {
		case e := <-p.engines:
			e.Close()
		default:
			return
		}
	}
}
