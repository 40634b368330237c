// Tracks the end-of-run statistics of a load balancer simulation:
// completed requests, throughput per tick, pool size, and leftover work.

package sim

import (
	"fmt"
	"io"
)

// Summary aggregates statistics about the simulation for final reporting.
type Summary struct {
	Completed      int     // Requests in the completion history
	Runtime        int64   // Configured tick budget
	AveragePerTick float64 // Completed / Runtime; 0 when Runtime is 0
	Servers        int     // Pool size
	Pending        int     // Requests still in the wait queue
	InFlight       int     // Requests held by servers when the run ended
}

// Summary computes the final statistics from the current engine state.
func (lb *LoadBalancer) Summary() Summary {
	s := Summary{
		Completed: len(lb.history),
		Runtime:   lb.cfg.Runtime,
		Servers:   len(lb.servers),
		Pending:   lb.waitQ.Len(),
	}
	if lb.cfg.Runtime > 0 {
		s.AveragePerTick = float64(s.Completed) / float64(lb.cfg.Runtime)
	}
	for _, server := range lb.servers {
		if server.Request() != nil {
			s.InFlight++
		}
	}
	return s
}

// Print writes the final statistics block to w.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "\n╔════════════════ FINAL STATS ═══════════════╗\n")
	fmt.Fprintf(w, "║ Total requests processed: %d\n", s.Completed)
	fmt.Fprintf(w, "║ Average requests per cycle: %g\n", s.AveragePerTick)
	fmt.Fprintf(w, "║ Final server count: %d\n", s.Servers)
	fmt.Fprintf(w, "║ Requests in queue: %d\n", s.Pending)
	fmt.Fprintf(w, "║ Requests in flight: %d\n", s.InFlight)
	fmt.Fprintf(w, "╚═════════════════════════════════════════════╝\n")
}
