// ABOUTME: Per-request handle carrying an attribute bag alongside the http.Request
// ABOUTME: Propagated to nested code through context.Context

package binding

import (
	"context"
	"net/http"
	"sync"
)

// Request is the handle bound for the duration of one request. Attributes are
// request-scoped key/value pairs set by middleware and read by downstream code.
type Request struct {
	HTTP *http.Request

	mu    sync.RWMutex
	attrs map[string]any
}

// NewRequest wraps r with an empty attribute bag.
func NewRequest(r *http.Request) *Request {
	return &Request{
		HTTP:  r,
		attrs: make(map[string]any),
	}
}

// SetAttribute stores value under name, replacing any previous value.
func (r *Request) SetAttribute(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attrs[name] = value
}

// Attribute returns the value stored under name.
func (r *Request) Attribute(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.attrs[name]
	return v, ok
}

// RemoveAttribute deletes name. Removing a missing attribute is a no-op.
func (r *Request) RemoveAttribute(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attrs, name)
}

// requestContextKey is the key type for storing a Request in context.Context.
type requestContextKey struct{}

// WithRequest returns a new context with req attached.
func WithRequest(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, requestContextKey{}, req)
}

// FromContext retrieves the bound Request, returning nil if not present.
func FromContext(ctx context.Context) *Request {
	req, ok := ctx.Value(requestContextKey{}).(*Request)
	if !ok {
		return nil
	}
	return req
}
