package protocol

import "sync"

// HandlerTable maps message kinds to handlers. The first registration for a
// kind wins; later registrations are ignored until the kind is dropped.
type HandlerTable[H any] struct {
	mu       sync.RWMutex
	handlers map[string]H
}

// NewHandlerTable creates an empty table.
func NewHandlerTable[H any]() *HandlerTable[H] {
	return &HandlerTable[H]{handlers: make(map[string]H)}
}

// Register stores h under kind unless the kind is taken. It reports whether
// h was stored.
func (t *HandlerTable[H]) Register(kind string, h H) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.handlers[kind]; exists {
		return false
	}
	t.handlers[kind] = h
	return true
}

// Drop removes the handler for kind. It reports whether one was registered.
func (t *HandlerTable[H]) Drop(kind string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, exists := t.handlers[kind]
	delete(t.handlers, kind)
	return exists
}

// Lookup returns the handler for kind.
func (t *HandlerTable[H]) Lookup(kind string) (H, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.handlers[kind]
	return h, ok
}
