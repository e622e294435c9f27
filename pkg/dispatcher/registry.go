package dispatcher

import (
	"slices"
	"sync"

	"github.com/mamadbah2/wacloud/pkg/filters"
	"github.com/mamadbah2/wacloud/pkg/update"
)

// Registry keeps handlers per kind in registration order. It is append-only and safe
// for concurrent use; readers get a snapshot, so registering while dispatching never
// affects a dispatch already in progress.
type Registry struct {
	mu       sync.RWMutex
	handlers map[update.Kind][]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[update.Kind][]Handler)}
}

// Register appends a handler for kind.
func (r *Registry) Register(kind update.Kind, filter filters.Filter, callback HandlerFunc) {
	r.AddHandlers(Handler{Kind: kind, Filter: filter, Callback: callback})
}

// AddHandlers appends handlers in the given order. Handlers without a callback are
// ignored.
func (r *Registry) AddHandlers(handlers ...Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range handlers {
		if h.Callback == nil {
			continue
		}
		r.handlers[h.Kind] = append(r.handlers[h.Kind], h)
	}
}

// Handlers returns a snapshot of the handlers registered for kind.
func (r *Registry) Handlers(kind update.Kind) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.handlers[kind])
}

// Len returns the number of registered handlers across all kinds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, hs := range r.handlers {
		n += len(hs)
	}
	return n
}
