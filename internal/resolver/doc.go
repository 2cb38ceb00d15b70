// Package resolver answers "which session belongs to the work running now".
//
// Resolution is a synchronous read: bound request, then its conversation id
// attribute, then the registry. Each missing link is an error; nothing is
// created and nothing is retried.
package resolver
