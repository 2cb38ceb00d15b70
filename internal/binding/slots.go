// ABOUTME: Goroutine-affine registry holding at most one current Request per goroutine
// ABOUTME: Lets parameterless hooks find the request being served on the calling goroutine

package binding

import (
	"sync"

	"github.com/petermattis/goid"
)

// Slots stores the current Request for each goroutine that set one. A value
// set on one goroutine is never visible from another, including goroutines
// started by the one that set it. Code that can reach the request's context
// should use FromContext instead.
type Slots struct {
	current sync.Map // goroutine id (int64) -> *Request
}

// NewSlots creates an empty slot registry.
func NewSlots() *Slots {
	return &Slots{}
}

// SetCurrent binds req to the calling goroutine. A nil req clears the slot;
// clearing an empty slot is a no-op.
func (s *Slots) SetCurrent(req *Request) {
	gid := goid.Get()
	if req == nil {
		s.current.Delete(gid)
		return
	}
	s.current.Store(gid, req)
}

// Current returns the Request bound to the calling goroutine, or nil.
func (s *Slots) Current() *Request {
	v, ok := s.current.Load(goid.Get())
	if !ok {
		return nil
	}
	return v.(*Request)
}

// Len reports how many goroutines currently hold a bound request.
func (s *Slots) Len() int {
	n := 0
	s.current.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
