// Package filter provides the HTTP middleware that binds a conversation to
// every request it serves.
//
// For each request the middleware looks for the conversation cookie (default
// name "org.mael.hibernate.conversation"). If it is missing, a conversation is
// created and the cookie is issued without an expiry, so it lasts for the
// browser session. A cookie whose value is not a canonical conversation id is
// rejected with 400; no replacement conversation is created.
//
// The id is then stored as the "hibernate.conversation.id" attribute of a
// binding.Request, which is attached to the request context and to the
// serving goroutine's slot. Both are cleared when the next handler returns,
// including when it panics.
//
// Requests that already carry a bound request in their context are passed
// through, as are async re-dispatches (see MarkAsyncDispatch) unless
// Config.FilterAsyncDispatch is set.
package filter
