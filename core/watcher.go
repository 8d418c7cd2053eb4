// Package core implements the tools shared by the components of the facility.
package core

import (
	"context"
	"sync"
)

// Observer is the interface to implement to watch events.
type Observer interface {
	NotifyCallback(event interface{})
}

// Observable provides primitives to add and remove observers and to notify
// them of new events.
type Observable interface {
	// Add adds the observer to the list of observers that will be notified of
	// new events.
	Add(observer Observer)

	// Remove removes the observer from the list thus stopping it from receiving
	// new events.
	Remove(observer Observer)

	// Notify notifies the observers of a new event.
	Notify(event interface{})

	// Len returns the number of observers.
	Len() int
}

// Watcher is an implementation of the Observable interface.
//
// - implements core.Observable
type Watcher struct {
	sync.RWMutex

	observers map[Observer]struct{}
}

// NewWatcher creates a new empty watcher.
func NewWatcher() *Watcher {
	return &Watcher{
		observers: make(map[Observer]struct{}),
	}
}

// Add implements core.Observable. It adds the observer to the list of observers
// that will be notified of new events.
func (w *Watcher) Add(observer Observer) {
	w.Lock()
	w.observers[observer] = struct{}{}
	w.Unlock()
}

// Remove implements core.Observable. It removes the observer from the list thus
// stopping it from receiving new events.
func (w *Watcher) Remove(observer Observer) {
	w.Lock()
	delete(w.observers, observer)
	w.Unlock()
}

// Notify implements core.Observable. It notifies the observers one after each
// other. The list is copied beforehand so that an observer can remove itself
// during the callback.
func (w *Watcher) Notify(event interface{}) {
	w.RLock()
	observers := make([]Observer, 0, len(w.observers))
	for obs := range w.observers {
		observers = append(observers, obs)
	}
	w.RUnlock()

	for _, obs := range observers {
		obs.NotifyCallback(event)
	}
}

// Len implements core.Observable. It returns the number of observers.
func (w *Watcher) Len() int {
	w.RLock()
	defer w.RUnlock()

	return len(w.observers)
}

// funcObserver is an observer that calls a function for every event. It is
// always used by pointer so that it can be removed.
type funcObserver struct {
	fn func(event interface{})
}

// NotifyCallback implements core.Observer.
func (obs *funcObserver) NotifyCallback(event interface{}) {
	obs.fn(event)
}

// WatchFunc adds an observer to the observable that calls the function for
// every event, until the context is done. The function is called by the
// notifier and must not block.
func WatchFunc(ctx context.Context, observable Observable, fn func(event interface{})) {
	obs := &funcObserver{fn: fn}

	observable.Add(obs)

	go func() {
		<-ctx.Done()
		observable.Remove(obs)
	}()
}
