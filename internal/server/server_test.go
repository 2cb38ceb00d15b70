// ABOUTME: Tests for the HTTP server and conversation-bound API
// ABOUTME: Drives requests through the filter to the SQLite store and checks conversation reuse and ending

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/convsession/internal/config"
	"github.com/2389/convsession/internal/conversation"
	"github.com/2389/convsession/internal/filter"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Server.HTTPAddr = "127.0.0.1:0"

	s, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

// client replays the conversation cookie like a browser would.
type client struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name != filter.DefaultCookieName {
			continue
		}
		if ck.MaxAge < 0 {
			c.cookie = nil
		} else {
			c.cookie = ck
		}
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "health checks must not start conversations")
	assert.Equal(t, 0, s.Registry().Len())
}

func TestReady(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0 conversations")
}

func TestAPI_ConversationReusedAcrossRequests(t *testing.T) {
	s := newTestServer(t)
	c := &client{t: t, handler: s.Handler()}

	rec := c.do(http.MethodPost, "/api/notes", AddNoteRequest{Text: "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, c.cookie)
	firstCookie := c.cookie.Value

	note := decode[NoteResponse](t, rec)
	assert.Equal(t, "hello", note.Text)
	assert.True(t, note.Pending)

	// Second request carries the cookie: same conversation, pending note visible.
	rec = c.do(http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "no new cookie for an existing conversation")
	list := decode[struct {
		Notes []NoteResponse `json:"notes"`
	}](t, rec)
	require.Len(t, list.Notes, 1)
	assert.Equal(t, note.ID, list.Notes[0].ID)

	rec = c.do(http.MethodGet, "/api/conversation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[ConversationResponse](t, rec)
	assert.Equal(t, firstCookie, info.ConversationID)
	assert.Equal(t, 1, info.PendingNotes)

	assert.Equal(t, 1, s.Registry().Len())
}

func TestAPI_PendingIsolatedUntilFlush(t *testing.T) {
	s := newTestServer(t)
	alice := &client{t: t, handler: s.Handler()}
	bob := &client{t: t, handler: s.Handler()}

	rec := alice.do(http.MethodPost, "/api/notes", AddNoteRequest{Text: "draft"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = bob.do(http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "draft")

	rec = alice.do(http.MethodPost, "/api/conversation/flush", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[FlushResponse](t, rec).Flushed)

	rec = bob.do(http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "draft")

	assert.Equal(t, 2, s.Registry().Len())
}

func TestAPI_EndConversation(t *testing.T) {
	s := newTestServer(t)
	c := &client{t: t, handler: s.Handler()}

	rec := c.do(http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c.cookie)
	staleCookie := c.cookie

	rec = c.do(http.MethodPost, "/api/conversation/end", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, c.cookie, "cookie should be expired")
	assert.Equal(t, 0, s.Registry().Len())

	id, err := conversation.ParseID(staleCookie.Value)
	require.NoError(t, err)
	_, err = s.Registry().GetSession(id)
	assert.ErrorIs(t, err, conversation.ErrConversationNotFound)

	// A client still sending the old cookie is told the conversation is gone.
	c.cookie = staleCookie
	rec = c.do(http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Nil(t, c.cookie)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	expired := cookies[0]
	assert.Equal(t, filter.DefaultCookieName, expired.Name)
	assert.Empty(t, expired.Value)
	assert.Equal(t, -1, expired.MaxAge)
	assert.Equal(t, "/", expired.Path)
	assert.True(t, expired.Secure)
	assert.True(t, expired.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, expired.SameSite)
	assert.Equal(t, 0, s.Registry().Len(), "stale cookie must not create a conversation")

	// Without the cookie the next request starts a fresh conversation.
	rec = c.do(http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c.cookie)
	assert.NotEqual(t, staleCookie.Value, c.cookie.Value)
}

func TestAPI_MalformedCookie(t *testing.T) {
	s := newTestServer(t)
	c := &client{t: t, handler: s.Handler(), cookie: &http.Cookie{Name: filter.DefaultCookieName, Value: "garbage"}}

	rec := c.do(http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, s.Registry().Len())
}

func TestAPI_AddNoteValidation(t *testing.T) {
	s := newTestServer(t)
	c := &client{t: t, handler: s.Handler()}

	rec := c.do(http.MethodPost, "/api/notes", AddNoteRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/api/notes", AddNoteRequest{Text: strings.Repeat("x", maxNoteLength+1)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodDelete, "/api/notes", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	c := &client{t: t, handler: s.Handler()}

	assert.Equal(t, http.StatusMethodNotAllowed, c.do(http.MethodGet, "/api/conversation/end", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, c.do(http.MethodGet, "/api/conversation/flush", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, c.do(http.MethodPost, "/api/conversation", nil).Code)
}

func TestFilterConfig_FromConfig(t *testing.T) {
	cfg := config.Default()
	secure := false
	cfg.Conversation.CookieSecure = &secure
	cfg.Conversation.CookieSameSite = "strict"
	cfg.Conversation.FilterAsyncDispatch = true

	fc, err := filterConfig(cfg.Conversation)
	require.NoError(t, err)
	assert.False(t, fc.CookieSecure)
	assert.True(t, fc.CookieHTTPOnly)
	assert.Equal(t, http.SameSiteStrictMode, fc.CookieSameSite)
	assert.True(t, fc.FilterAsyncDispatch)
	assert.Equal(t, filter.DefaultCookieName, fc.CookieName)
}

func TestServe_ShutdownEndsConversations(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	s, err := New(cfg, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/notes")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, s.Registry().Len())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, 0, s.Registry().Len())
}
