// Package trace provides decision-trace recording for load balancer pool decisions.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// ActivationRecord captures a single server activation or deactivation.
type ActivationRecord struct {
	ServerID int
	Clock    int64
	Active   bool
	Reason   string
}

// AssignmentRecord captures a request being handed to a server.
type AssignmentRecord struct {
	RequestID int64
	ServerID  int
	Clock     int64
	QueueLen  int // wait queue length after the request was dequeued
}

// BurstRecord captures a mid-run traffic burst.
type BurstRecord struct {
	Clock    int64
	Size     int
	QueueLen int // wait queue length right after the burst arrived
}
