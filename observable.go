package framegraph

import "sync"

type observer[T any] struct {
	fn func(T)
}

// Observable is a list of callbacks notified in registration order.
type Observable[T any] struct {
	mu        sync.Mutex
	observers []*observer[T]
}

// Add registers fn and returns a function removing it again.
func (o *Observable[T]) Add(fn func(T)) (remove func()) {
	ob := &observer[T]{fn: fn}
	o.mu.Lock()
	o.observers = append(o.observers, ob)
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, cur := range o.observers {
			if cur == ob {
				o.observers = append(o.observers[:i], o.observers[i+1:]...)
				return
			}
		}
	}
}

// Notify calls every observer with v. Observers added or removed during the
// call take effect on the next notification.
func (o *Observable[T]) Notify(v T) {
	o.mu.Lock()
	snapshot := append([]*observer[T](nil), o.observers...)
	o.mu.Unlock()
	for _, ob := range snapshot {
		ob.fn(v)
	}
}

func (o *Observable[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.observers)
}

func (o *Observable[T]) Clear() {
	o.mu.Lock()
	o.observers = nil
	o.mu.Unlock()
}
