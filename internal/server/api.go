// ABOUTME: Conversation-bound HTTP API handlers
// ABOUTME: Every handler reaches its session through the resolver, never by parameter

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/2389/convsession/internal/binding"
	"github.com/2389/convsession/internal/conversation"
	"github.com/2389/convsession/internal/resolver"
	"github.com/2389/convsession/internal/store"
)

// maxNoteLength bounds the text accepted by POST /api/notes.
const maxNoteLength = 4096

// NoteResponse is the JSON form of a note.
type NoteResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Pending   bool      `json:"pending"`
}

// AddNoteRequest is the body of POST /api/notes.
type AddNoteRequest struct {
	Text string `json:"text"`
}

// ConversationResponse describes the conversation bound to the request.
type ConversationResponse struct {
	ConversationID string    `json:"conversation_id"`
	OpenedAt       time.Time `json:"opened_at"`
	PendingNotes   int       `json:"pending_notes"`
}

// FlushResponse reports how many notes a flush wrote.
type FlushResponse struct {
	Flushed int `json:"flushed"`
}

func toNoteResponse(n *store.Note) NoteResponse {
	return NoteResponse{
		ID:        n.ID,
		Text:      n.Text,
		CreatedAt: n.CreatedAt,
		Pending:   n.Pending,
	}
}

// currentSession resolves the store session for the running request through
// the engine hook. Writes the error response and returns nil on failure.
func (s *Server) currentSession(w http.ResponseWriter) *store.Session {
	cs, err := s.resolver.CurrentSession()
	if err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			s.filter.ExpireCookie(w)
		}
		s.writeResolveError(w, err)
		return nil
	}
	session, ok := cs.(*store.Session)
	if !ok {
		s.logger.Error("unexpected session type", "type", fmt.Sprintf("%T", cs))
		s.sendJSONError(w, http.StatusInternalServerError, "unexpected session type")
		return nil
	}
	return session
}

// writeResolveError maps resolution failures to responses. A conversation
// cookie naming an ended or unknown conversation is a client error.
func (s *Server) writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound):
		s.sendJSONError(w, http.StatusGone, "conversation has ended")
	case errors.Is(err, resolver.ErrNoBoundRequest), errors.Is(err, resolver.ErrNoConversation):
		s.logger.Error("session resolution outside a bound request", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "no active conversation")
	default:
		s.logger.Error("session resolution failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// conversationID returns the id bound to the request by the filter.
func (s *Server) conversationID(r *http.Request) (conversation.ID, bool) {
	req := binding.FromContext(r.Context())
	if req == nil {
		return conversation.ID{}, false
	}
	v, ok := req.Attribute(s.filter.AttributeName())
	if !ok {
		return conversation.ID{}, false
	}
	id, ok := v.(conversation.ID)
	return id, ok
}

// handleNotes handles GET and POST /api/notes.
func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListNotes(w, r)
	case http.MethodPost:
		s.handleAddNote(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleListNotes returns flushed notes plus this conversation's pending ones.
func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	session := s.currentSession(w)
	if session == nil {
		return
	}

	notes, err := session.ListNotes(r.Context())
	if err != nil {
		s.logger.Error("failed to list notes", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}

	out := make([]NoteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, toNoteResponse(n))
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"notes": out})
}

// handleAddNote adds a pending note to the conversation's session.
func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req AddNoteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 2*maxNoteLength)).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		s.sendJSONError(w, http.StatusBadRequest, "text is required")
		return
	}
	if len(req.Text) > maxNoteLength {
		s.sendJSONError(w, http.StatusBadRequest, "text is too long")
		return
	}

	session := s.currentSession(w)
	if session == nil {
		return
	}

	note, err := session.AddNote(req.Text)
	if err != nil {
		s.logger.Error("failed to add note", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "failed to add note")
		return
	}
	s.sendJSON(w, http.StatusCreated, toNoteResponse(note))
}

// handleConversation handles GET /api/conversation.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := s.conversationID(r)
	if !ok {
		s.sendJSONError(w, http.StatusInternalServerError, "no active conversation")
		return
	}
	session := s.currentSession(w)
	if session == nil {
		return
	}

	s.sendJSON(w, http.StatusOK, ConversationResponse{
		ConversationID: id.String(),
		OpenedAt:       session.OpenedAt(),
		PendingNotes:   session.PendingCount(),
	})
}

// handleFlush handles POST /api/conversation/flush.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	session := s.currentSession(w)
	if session == nil {
		return
	}

	n, err := session.Flush(r.Context())
	if err != nil {
		s.logger.Error("failed to flush session", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "failed to flush")
		return
	}
	s.sendJSON(w, http.StatusOK, FlushResponse{Flushed: n})
}

// handleEnd handles POST /api/conversation/end. Unflushed work is discarded
// and the client is told to drop its cookie.
func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := s.conversationID(r)
	if !ok {
		s.sendJSONError(w, http.StatusInternalServerError, "no active conversation")
		return
	}

	err := s.registry.EndConversation(id)
	if errors.Is(err, conversation.ErrConversationNotFound) {
		s.filter.ExpireCookie(w)
		s.sendJSONError(w, http.StatusGone, "conversation has ended")
		return
	}
	if err != nil {
		// The entry is gone even when closing the session failed.
		s.logger.Error("failed to close conversation session", "conversation_id", id, "error", err)
	}

	s.filter.ExpireCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// sendJSON writes v as a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
