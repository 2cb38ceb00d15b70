// Package store provides the SQLite persistence engine behind conversations.
//
// # Drivers
//
// SQLiteStore works with either registered driver:
//
//   - "sqlite": modernc.org/sqlite, pure Go (default)
//   - "sqlite3": github.com/mattn/go-sqlite3, requires cgo
//
// # Sessions
//
// SQLiteStore implements conversation.SessionFactory. Each call to OpenSession
// pins one *sql.Conn for the lifetime of the conversation and returns a
// *Session wrapping it. The session behaves like a unit of work:
//
//   - AddNote buffers a note in memory
//   - ListNotes returns committed notes plus this session's pending ones
//   - Flush writes pending notes in a single short transaction
//   - Close drops whatever was not flushed and returns the connection
//
// Transactions are never held open across requests, so one conversation's
// unflushed work never blocks another conversation's writes.
//
// Every open session holds a pool connection. An in-memory database (":memory:")
// is per connection in SQLite and therefore unsuitable; use a file path.
package store
