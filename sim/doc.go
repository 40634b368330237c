// Package sim provides the discrete-time load balancer simulation engine for lbsim.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - request.go: Request (addresses, fixed duration, completion flag)
//   - server.go: the single-slot Server state machine (idle/inactive, running)
//   - loadbalancer.go: the per-tick orchestration over the pool and the wait queue
//
// # Tick semantics
//
// Each Tick runs three phases in fixed order:
//  1. every running server is advanced once, in pool order; completions are
//     appended to the history and the server is released
//  2. every idle server, in pool order, takes the head of the wait queue
//     (reactivating if needed) or is deactivated when the queue is empty
//  3. with a small configured probability a burst of new traffic arrives and
//     inactive servers are fed from it
//
// A server that completes in phase 1 is never advanced again in the same tick.
//
// # Collaborators
//
// The engine is driven through small interfaces:
//   - TrafficSource: creates batches of requests (see sim/workload)
//   - RandomSource: bounded integer draws, shared with the traffic source
//   - StatsRecorder: optional observers (see sim/telemetry)
//
// Decision tracing lives in sim/trace.
package sim
