// ABOUTME: Resolves the persistence session for the request currently being served
// ABOUTME: Reads the bound request, its conversation attribute, then the registry

package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/convsession/internal/binding"
	"github.com/2389/convsession/internal/conversation"
)

var (
	// ErrNoBoundRequest is returned when no request is bound to the caller.
	ErrNoBoundRequest = errors.New("no request bound to current goroutine")

	// ErrNoConversation is returned when the bound request has no conversation id.
	ErrNoConversation = errors.New("no conversation bound to request")
)

// SessionContext is the hook a persistence engine calls to obtain the session
// for the unit of work it is running in.
type SessionContext interface {
	CurrentSession() (conversation.Session, error)
}

// SessionLookup returns the session of a live conversation.
type SessionLookup interface {
	GetSession(id conversation.ID) (conversation.Session, error)
}

// Resolver implements SessionContext on top of the conversation registry.
type Resolver struct {
	sessions      SessionLookup
	slots         *binding.Slots
	attributeName string
}

// New creates a resolver reading the conversation id from attributeName.
func New(sessions SessionLookup, slots *binding.Slots, attributeName string) *Resolver {
	return &Resolver{
		sessions:      sessions,
		slots:         slots,
		attributeName: attributeName,
	}
}

// CurrentSession returns the session for the request bound to the calling
// goroutine. It fails if called outside a filtered request, including from
// goroutines spawned by the handler.
func (r *Resolver) CurrentSession() (conversation.Session, error) {
	return r.resolve(r.slots.Current())
}

// SessionFromContext returns the session for the request attached to ctx.
func (r *Resolver) SessionFromContext(ctx context.Context) (conversation.Session, error) {
	return r.resolve(binding.FromContext(ctx))
}

func (r *Resolver) resolve(req *binding.Request) (conversation.Session, error) {
	if req == nil {
		return nil, ErrNoBoundRequest
	}

	v, ok := req.Attribute(r.attributeName)
	if !ok {
		return nil, ErrNoConversation
	}
	id, ok := v.(conversation.ID)
	if !ok {
		return nil, fmt.Errorf("%w: attribute %q holds %T", ErrNoConversation, r.attributeName, v)
	}

	session, err := r.sessions.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}
	return session, nil
}
