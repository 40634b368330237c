// Defines the Request struct that models a single unit of synthetic network traffic.
// Tracks source/destination addresses, the processing duration in ticks, and completion.

package sim

import (
	"fmt"
)

// Request models a single request's lifecycle in the simulation.
// Each request has:
// - a source and destination address (dotted IPv4 strings)
// - a processing duration, fixed at creation
// - a completion flag set once a server finishes it
//
// A request lives in exactly one place at a time: the wait queue, a single
// server's slot, or the completion history.
type Request struct {
	ID          int64  // Unique, monotonically increasing identifier
	Source      string // Originating address
	Destination string // Target address

	duration  int // Ticks of processing required (>= 1)
	completed bool
}

// NewRequest creates a request with the given identity, addresses and duration.
func NewRequest(id int64, source, destination string, duration int) *Request {
	return &Request{
		ID:          id,
		Source:      source,
		Destination: destination,
		duration:    duration,
	}
}

// Duration returns the number of ticks a server needs to finish the request.
func (req *Request) Duration() int {
	return req.duration
}

// Complete marks the request as processed. Calling it again has no effect.
func (req *Request) Complete() {
	req.completed = true
}

// IsCompleted reports whether a server has finished the request.
func (req *Request) IsCompleted() bool {
	return req.completed
}

// This method returns a human-readable string representation of a Request.
func (req *Request) String() string {
	return fmt.Sprintf("Request #%d From:%s ➜ %s Duration: %d", req.ID, req.Source, req.Destination, req.duration)
}
