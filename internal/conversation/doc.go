// Package conversation owns the mapping from conversation ids to open
// persistence sessions.
//
// # Lifecycle
//
// A conversation id and its session are created together by
// Registry.CreateConversation and destroyed together by
// Registry.EndConversation. The registry owns the session in between; callers
// borrow it through GetSession and must not close it themselves.
//
//	reg := conversation.NewRegistry(logger)
//	if err := reg.SetSessionFactory(sqlStore); err != nil {
//	    return err
//	}
//	id, err := reg.CreateConversation(ctx)
//	session, err := reg.GetSession(id)
//	err = reg.EndConversation(id)
//
// # Unknown ids
//
// GetSession and EndConversation both report ErrConversationNotFound for ids
// that were never created or have already ended.
//
// # Expiry
//
// Conversations have no timeout. A conversation that is never ended keeps its
// session open until Registry.Close runs at shutdown.
package conversation
