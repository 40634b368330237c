// Defines the Server, a single-slot worker that advances at most one request per tick.

package sim

import (
	"fmt"
	"io"
)

// Server holds at most one Request and processes it one tick at a time.
//
// States:
//   - idle/inactive: no request, not eligible for assignment
//   - idle/active: no request, eligible (only between a completion and the
//     assignment pass of the same tick)
//   - running: holds a request and advances it each tick
//
// running implies a request is held. active is owned by the LoadBalancer;
// Assign never changes it.
type Server struct {
	ID int

	request *Request
	elapsed int // ticks spent on the current request
	running bool
	active  bool
}

// NewServer creates an idle, inactive server.
func NewServer(id int) *Server {
	return &Server{ID: id}
}

// Assign hands req to the server and resets its elapsed tick counter.
// Panics if the server is still running a request.
func (s *Server) Assign(req *Request) {
	if req == nil {
		panic("Assign: request must not be nil")
	}
	if s.running {
		panic(fmt.Sprintf("Assign: %s is still running request #%d", s, s.request.ID))
	}
	s.request = req
	s.elapsed = 0
	s.running = true
}

// Advance processes the current request for one tick and reports whether it completed.
// A request with duration D completes on exactly the D-th call. Progress lines for
// non-final ticks are written to sink (nil discards them). Advancing an idle server is a no-op.
func (s *Server) Advance(sink io.Writer) bool {
	if !s.running {
		return false
	}
	duration := s.request.Duration()
	if s.elapsed+1 < duration {
		if sink == nil {
			sink = io.Discard
		}
		fmt.Fprintf(sink, "┌─[%s]─────────────────────────\n", s)
		fmt.Fprintf(sink, "├─➤ Processing %s Remaining: %d cycles\n", s.request, duration-s.elapsed-1)
		s.elapsed++
		return false
	}
	s.elapsed++
	s.running = false
	return true
}

// Release detaches and returns the finished request, leaving the server idle.
// Returns nil if the server holds no request. Panics if the request is still running.
func (s *Server) Release() *Request {
	if s.running {
		panic(fmt.Sprintf("Release: %s is still running request #%d", s, s.request.ID))
	}
	req := s.request
	s.request = nil
	return req
}

// SetActive toggles eligibility for future assignment.
func (s *Server) SetActive(active bool) {
	s.active = active
}

// IsRunning reports whether the server is advancing a request.
func (s *Server) IsRunning() bool {
	return s.running
}

// IsActive reports whether the server participates in assignment.
func (s *Server) IsActive() bool {
	return s.active
}

// Request returns the request currently held, or nil.
func (s *Server) Request() *Request {
	return s.request
}

// Elapsed returns the ticks spent on the current request.
func (s *Server) Elapsed() int {
	return s.elapsed
}

func (s *Server) String() string {
	return fmt.Sprintf("Server-%d", s.ID)
}
