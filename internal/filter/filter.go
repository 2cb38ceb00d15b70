// ABOUTME: HTTP middleware that binds a conversation to each request
// ABOUTME: Reads or issues the conversation cookie and exposes the id to nested code

package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/2389/convsession/internal/binding"
	"github.com/2389/convsession/internal/conversation"
)

const (
	// DefaultCookieName is the cookie carrying the conversation id.
	DefaultCookieName = "org.mael.hibernate.conversation"

	// DefaultAttributeName is the request attribute holding the conversation id.
	DefaultAttributeName = "hibernate.conversation.id"
)

// Config controls cookie and dispatch handling.
type Config struct {
	CookieName     string
	AttributeName  string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite

	// FilterAsyncDispatch binds requests marked with MarkAsyncDispatch too.
	// When false those requests pass through untouched.
	FilterAsyncDispatch bool
}

// DefaultConfig returns the default filter configuration.
func DefaultConfig() Config {
	return Config{
		CookieName:     DefaultCookieName,
		AttributeName:  DefaultAttributeName,
		CookiePath:     "/",
		CookieSecure:   true,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	}
}

// ConversationCreator creates new conversations.
type ConversationCreator interface {
	CreateConversation(ctx context.Context) (conversation.ID, error)
}

// Filter binds each request to a conversation for its duration.
type Filter struct {
	cfg     Config
	creator ConversationCreator
	slots   *binding.Slots
	logger  *slog.Logger
}

// New creates a filter. Empty name fields in cfg fall back to the defaults.
func New(cfg Config, creator ConversationCreator, slots *binding.Slots, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.AttributeName == "" {
		cfg.AttributeName = DefaultAttributeName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	return &Filter{
		cfg:     cfg,
		creator: creator,
		slots:   slots,
		logger:  logger.With("component", "filter"),
	}
}

// CookieName returns the configured conversation cookie name.
func (f *Filter) CookieName() string {
	return f.cfg.CookieName
}

// AttributeName returns the configured conversation attribute name.
func (f *Filter) AttributeName() string {
	return f.cfg.AttributeName
}

// asyncDispatchKey marks a request as an asynchronous re-dispatch.
type asyncDispatchKey struct{}

// MarkAsyncDispatch returns a copy of r flagged as an async re-dispatch of an
// already-filtered request.
func MarkAsyncDispatch(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), asyncDispatchKey{}, true))
}

func isAsyncDispatch(r *http.Request) bool {
	v, _ := r.Context().Value(asyncDispatchKey{}).(bool)
	return v
}

// shouldNotFilter reports whether the request is a nested or async dispatch
// that must not be bound a second time.
func (f *Filter) shouldNotFilter(r *http.Request) bool {
	if binding.FromContext(r.Context()) != nil {
		return true
	}
	return isAsyncDispatch(r) && !f.cfg.FilterAsyncDispatch
}

// Middleware wraps next so it runs with a bound conversation.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.shouldNotFilter(r) {
			next.ServeHTTP(w, r)
			return
		}

		id, err := f.lookupOrCreate(w, r)
		if err != nil {
			if errors.Is(err, conversation.ErrInvalidID) {
				f.logger.Warn("malformed conversation cookie", "error", err, "path", r.URL.Path)
				http.Error(w, `{"error":"malformed conversation cookie"}`, http.StatusBadRequest)
				return
			}
			f.logger.Error("creating conversation", "error", err)
			http.Error(w, `{"error":"failed to create conversation"}`, http.StatusInternalServerError)
			return
		}

		req := binding.NewRequest(r)
		r = r.WithContext(binding.WithRequest(r.Context(), req))
		req.HTTP = r

		f.logger.Debug("binding conversation", "conversation_id", id, "path", r.URL.Path)
		f.bind(id, req)
		defer func() {
			f.logger.Debug("unbinding conversation", "conversation_id", id, "path", r.URL.Path)
			f.unbind(req)
		}()

		next.ServeHTTP(w, r)
	})
}

func (f *Filter) bind(id conversation.ID, req *binding.Request) {
	req.SetAttribute(f.cfg.AttributeName, id)
	f.slots.SetCurrent(req)
}

func (f *Filter) unbind(req *binding.Request) {
	req.RemoveAttribute(f.cfg.AttributeName)
	f.slots.SetCurrent(nil)
}

// lookupOrCreate returns the id carried by the request cookie, or creates a
// new conversation and issues the cookie for it.
func (f *Filter) lookupOrCreate(w http.ResponseWriter, r *http.Request) (conversation.ID, error) {
	id, found, err := f.lookupCookie(r)
	if err != nil {
		return conversation.ID{}, err
	}
	if found {
		return id, nil
	}

	f.logger.Debug("no conversation cookie, creating conversation", "path", r.URL.Path)
	id, err = f.creator.CreateConversation(r.Context())
	if err != nil {
		return conversation.ID{}, fmt.Errorf("creating conversation: %w", err)
	}

	// No MaxAge or Expires: the cookie lives until the browser session ends.
	http.SetCookie(w, &http.Cookie{
		Name:     f.cfg.CookieName,
		Value:    id.String(),
		Path:     f.cfg.CookiePath,
		Secure:   f.cfg.CookieSecure,
		HttpOnly: f.cfg.CookieHTTPOnly,
		SameSite: f.cfg.CookieSameSite,
	})
	return id, nil
}

// lookupCookie parses the first cookie named CookieName. Later cookies with
// the same name are ignored.
func (f *Filter) lookupCookie(r *http.Request) (conversation.ID, bool, error) {
	for _, c := range r.Cookies() {
		if c.Name != f.cfg.CookieName {
			continue
		}
		id, err := conversation.ParseID(c.Value)
		if err != nil {
			return conversation.ID{}, true, err
		}
		return id, true, nil
	}
	return conversation.ID{}, false, nil
}

// ExpireCookie instructs the client to drop its conversation cookie.
func (f *Filter) ExpireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     f.cfg.CookieName,
		Value:    "",
		Path:     f.cfg.CookiePath,
		MaxAge:   -1,
		Secure:   f.cfg.CookieSecure,
		HttpOnly: f.cfg.CookieHTTPOnly,
		SameSite: f.cfg.CookieSameSite,
	})
}
