package async

import (
	"context"
	"errors"
	"sync"

	"github.com/zclconf/go-cty/cty"
)

// ErrUnavailable is returned by Get when the value has not been resolved yet.
var ErrUnavailable = errors.New("async value not yet available")

type state int

const (
	stateUnresolved state = iota
	stateConcrete
	stateError
)

// Value is a placeholder for a cty.Value that is resolved exactly once, with
// either a concrete value or an error. It is safe for concurrent use.
type Value struct {
	mu      sync.Mutex
	state   state
	val     cty.Value
	err     error
	done    chan struct{}
	waiters []func()
}

// NewUnresolved returns a value that has not been resolved yet.
func NewUnresolved() *Value {
	return &Value{done: make(chan struct{})}
}

// NewConcrete returns a value already resolved with v.
func NewConcrete(v cty.Value) *Value {
	av := NewUnresolved()
	av.SetValue(v)
	return av
}

// NewError returns a value already resolved with err.
func NewError(err error) *Value {
	av := NewUnresolved()
	av.SetError(err)
	return av
}

// SetValue resolves the value. It reports false if the value was already
// resolved, in which case v is discarded.
func (a *Value) SetValue(v cty.Value) bool {
	return a.resolve(stateConcrete, v, nil)
}

// SetError resolves the value with an error. It reports false if the value
// was already resolved.
func (a *Value) SetError(err error) bool {
	if err == nil {
		err = errors.New("async value resolved with nil error")
	}
	return a.resolve(stateError, cty.NilVal, err)
}

func (a *Value) resolve(s state, v cty.Value, err error) bool {
	a.mu.Lock()
	if a.state != stateUnresolved {
		a.mu.Unlock()
		return false
	}
	a.state = s
	a.val = v
	a.err = err
	waiters := a.waiters
	a.waiters = nil
	close(a.done)
	a.mu.Unlock()

	// Waiters run outside the lock so they may read the value.
	for _, fn := range waiters {
		fn()
	}
	return true
}

// IsAvailable reports whether the value has been resolved.
func (a *Value) IsAvailable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state != stateUnresolved
}

// IsError reports whether the value resolved with an error.
func (a *Value) IsError() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == stateError
}

// Get returns the resolved value or error without blocking. ErrUnavailable is
// returned if the value is still unresolved.
func (a *Value) Get() (cty.Value, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case stateConcrete:
		return a.val, nil
	case stateError:
		return cty.NilVal, a.err
	default:
		return cty.NilVal, ErrUnavailable
	}
}

// Done returns a channel that is closed once the value is resolved.
func (a *Value) Done() <-chan struct{} {
	return a.done
}

// Await blocks until the value is resolved or ctx is done.
func (a *Value) Await(ctx context.Context) (cty.Value, error) {
	select {
	case <-a.done:
		return a.Get()
	case <-ctx.Done():
		return cty.NilVal, ctx.Err()
	}
}

// AndThen runs fn once the value is resolved. If the value is already
// resolved, fn runs synchronously on the calling goroutine; otherwise it runs
// on the goroutine that resolves the value.
func (a *Value) AndThen(fn func()) {
	a.mu.Lock()
	if a.state == stateUnresolved {
		a.waiters = append(a.waiters, fn)
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	fn()
}

// RunWhenReady runs fn once every value in values is resolved. With no
// values, fn runs immediately.
func RunWhenReady(values []*Value, fn func()) {
	if len(values) == 0 {
		fn()
		return
	}
	var mu sync.Mutex
	remaining := len(values)
	for _, v := range values {
		v.AndThen(func() {
			mu.Lock()
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				fn()
			}
		})
	}
}
