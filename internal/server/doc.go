// Package server wires the conversation components into an HTTP server.
//
// # Components
//
// New creates, in order:
//
//   - store.SQLiteStore, the session factory
//   - conversation.Registry, with the store as its factory
//   - binding.Slots and filter.Filter
//   - resolver.Resolver, the session hook used by every handler
//
// Shutdown reverses that: stop HTTP, end every live conversation, close the
// store.
//
// # Endpoints
//
// Health endpoints are not conversation-bound:
//
//	GET  /health               liveness
//	GET  /health/ready         database ping and live conversation count
//
// Conversation-bound endpoints run behind the filter middleware:
//
//	GET  /api/notes                flushed notes plus this conversation's pending ones
//	POST /api/notes                {"text": "..."} adds a pending note
//	GET  /api/conversation         id, open time, and pending count
//	POST /api/conversation/flush   writes pending notes
//	POST /api/conversation/end     ends the conversation and expires the cookie
//
// A cookie naming a conversation that no longer exists (ended, or lost on
// restart) gets 410 Gone; the client should drop the cookie and retry.
package server
