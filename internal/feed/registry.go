// Package feed carries payload-free order change notifications from the
// store to watching clients. Consumers never receive row data; a
// notification only means "refetch".
package feed

import "sync"

// Registry is an in-process watched-table → callback registry implementing
// the engine's Feed contract. The empty table key is the firehose: those
// watchers fire on every notification regardless of table.
type Registry struct {
	mu       sync.Mutex
	nextID   int
	watchers map[string]map[int]func()
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{watchers: make(map[string]map[int]func())}
}

// Watch registers onChange for the table ("" for all orders). The returned
// func releases the subscription; it is idempotent.
func (r *Registry) Watch(table string, onChange func()) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	if r.watchers[table] == nil {
		r.watchers[table] = make(map[int]func())
	}
	r.watchers[table][id] = onChange
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.watchers[table], id)
			if len(r.watchers[table]) == 0 {
				delete(r.watchers, table)
			}
			r.mu.Unlock()
		})
	}
}

// Notify fires the table's watchers and every firehose watcher. Callbacks run
// synchronously on the caller's goroutine.
func (r *Registry) Notify(table string) {
	r.mu.Lock()
	var fns []func()
	for id := range r.watchers[table] {
		fns = append(fns, r.watchers[table][id])
	}
	if table != "" {
		for id := range r.watchers[""] {
			fns = append(fns, r.watchers[""][id])
		}
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// WatcherCount reports how many live subscriptions exist, across all tables.
func (r *Registry) WatcherCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.watchers {
		n += len(m)
	}
	return n
}
