package msgqueue

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler receives dispatched messages for a target.
type Handler interface {
	HandleMessage(msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(msg *Message) error

func (f HandlerFunc) HandleMessage(msg *Message) error {
	return f(msg)
}

// Router maps message targets to handlers. It is safe for concurrent use,
// so targets may come and go from any goroutine.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Handle registers h for target, replacing any previous handler.
func (r *Router) Handle(target string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[target] = h
}

// HandleFunc registers fn for target.
func (r *Router) HandleFunc(target string, fn func(msg *Message) error) {
	r.Handle(target, HandlerFunc(fn))
}

// Remove unregisters target. Removing an unknown target is a no-op.
func (r *Router) Remove(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, target)
}

// SetFallback sets the handler for messages with no registered target.
func (r *Router) SetFallback(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

// Route delivers msg to its handler. Messages without a handler go to the
// fallback, or are dropped when there is none.
func (r *Router) Route(msg *Message) error {
	r.mu.RLock()
	h, ok := r.handlers[msg.Target]
	if !ok {
		h = r.fallback
	}
	r.mu.RUnlock()

	if h == nil {
		Logger().Debug("dropping unrouted message", zap.String("target", msg.Target))
		return nil
	}
	return h.HandleMessage(msg)
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
