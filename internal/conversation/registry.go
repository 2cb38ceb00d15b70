// ABOUTME: Registry mapping conversation ids to open persistence sessions
// ABOUTME: Creates sessions through the configured factory and closes them when a conversation ends

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrConversationNotFound is returned when an id has no live conversation.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrNoSessionFactory is returned when a conversation is created before a factory is set.
	ErrNoSessionFactory = errors.New("session factory not configured")

	// ErrSessionFactoryAlreadySet is returned when SetSessionFactory is called twice.
	ErrSessionFactoryAlreadySet = errors.New("session factory already set")
)

// Session is an open unit-of-work handle owned by the registry until its
// conversation ends.
type Session interface {
	Close() error
}

// SessionFactory opens new sessions for conversations.
type SessionFactory interface {
	OpenSession(ctx context.Context) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context) (Session, error)

// OpenSession calls f(ctx).
func (f SessionFactoryFunc) OpenSession(ctx context.Context) (Session, error) {
	return f(ctx)
}

// Registry owns the mapping from conversation id to session. It is safe for
// concurrent use; lookups share a read lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[ID]Session
	factory  SessionFactory
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. The session factory must be set with
// SetSessionFactory before the first conversation is created.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[ID]Session),
		logger:   logger.With("component", "conversation"),
	}
}

// SetSessionFactory configures the factory used by every CreateConversation call.
// It can only be set once.
func (r *Registry) SetSessionFactory(f SessionFactory) error {
	if f == nil {
		return fmt.Errorf("nil session factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.factory != nil {
		return ErrSessionFactoryAlreadySet
	}
	r.factory = f
	return nil
}

// CreateConversation opens a new session and maps it to a fresh random id.
func (r *Registry) CreateConversation(ctx context.Context) (ID, error) {
	r.mu.RLock()
	factory := r.factory
	r.mu.RUnlock()

	if factory == nil {
		return ID{}, ErrNoSessionFactory
	}

	// Open outside the lock; the factory may block on the database.
	session, err := factory.OpenSession(ctx)
	if err != nil {
		return ID{}, fmt.Errorf("opening session: %w", err)
	}

	r.mu.Lock()
	id := NewID()
	for {
		if _, exists := r.sessions[id]; !exists {
			break
		}
		id = NewID()
	}
	r.sessions[id] = session
	r.mu.Unlock()

	r.logger.Debug("conversation created", "conversation_id", id)
	return id, nil
}

// GetSession returns the session mapped to id. It never creates a conversation.
func (r *Registry) GetSession(id ID) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return session, nil
}

// EndConversation removes the conversation and closes its session. Ending an
// unknown id returns ErrConversationNotFound. The entry is removed even if
// closing the session fails.
func (r *Registry) EndConversation(id ID) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}

	r.logger.Debug("conversation ended", "conversation_id", id)
	if err := session.Close(); err != nil {
		return fmt.Errorf("closing session for conversation %s: %w", id, err)
	}
	return nil
}

// Len returns the number of live conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close ends every live conversation. Used at shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[ID]Session)
	r.mu.Unlock()

	var errs []error
	for id, session := range sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing session for conversation %s: %w", id, err))
		}
	}
	if len(sessions) > 0 {
		r.logger.Info("ended live conversations", "count", len(sessions))
	}
	return errors.Join(errs...)
}
