// Package binding makes the request being served discoverable from nested code.
//
// Two mechanisms are provided:
//
//   - Context propagation: WithRequest/FromContext attach the Request to the
//     request's context.Context. Anything that receives the context can find
//     the request. This is the preferred path.
//
//   - Goroutine slots: Slots.SetCurrent/Current bind the Request to the calling
//     goroutine for hooks that are invoked without any parameters. Only the
//     goroutine that called SetCurrent observes the value. Goroutines spawned
//     while serving the request see nothing and must use the context instead.
//
// The conversation filter sets both before calling the next handler and clears
// both when the handler returns or panics.
package binding
