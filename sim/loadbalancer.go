// sim/loadbalancer.go
package sim

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/lbsim/sim/trace"
)

// TrafficSource produces batches of new requests on demand.
type TrafficSource interface {
	// Generate returns n freshly created requests in creation order.
	Generate(n int) []*Request
}

// Completion is one entry of the completion history.
type Completion struct {
	Request  *Request
	ServerID int
	Tick     int64
}

// StatsRecorder observes engine activity. Implementations must not mutate engine state.
type StatsRecorder interface {
	ObserveTick(clock int64, queueLen, activeServers, runningServers int)
	ObserveCompletion(c Completion)
	ObserveBurst(clock int64, size int)
	ObserveActivation(serverID int, clock int64, active bool)
}

// Option configures optional LoadBalancer collaborators.
type Option func(*LoadBalancer)

// WithRecorder adds a StatsRecorder. May be given more than once.
func WithRecorder(r StatsRecorder) Option {
	return func(lb *LoadBalancer) {
		if r != nil {
			lb.recorders = append(lb.recorders, r)
		}
	}
}

// WithTrace attaches a decision trace.
func WithTrace(t *trace.SimulationTrace) Option {
	return func(lb *LoadBalancer) {
		lb.trace = t
	}
}

// LoadBalancer owns the server pool, the wait queue, the completion history
// and the clock, and advances them one tick at a time.
//
// Every request is always in exactly one of: the wait queue, one server's
// slot, or the history.
type LoadBalancer struct {
	cfg     Config
	clock   int64
	servers []*Server
	waitQ   *WaitQueue
	history []Completion

	traffic   TrafficSource
	rng       RandomSource
	recorders []StatsRecorder
	trace     *trace.SimulationTrace

	generated int // total requests ever enqueued
	started   bool
}

// NewLoadBalancer validates cfg, enqueues the initial burst and creates the server pool.
// Servers are not assigned work until Start (or the first Tick).
func NewLoadBalancer(cfg Config, traffic TrafficSource, rng RandomSource, opts ...Option) (*LoadBalancer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if traffic == nil {
		return nil, fmt.Errorf("traffic source must not be nil")
	}
	if rng == nil {
		return nil, fmt.Errorf("random source must not be nil")
	}
	lb := &LoadBalancer{
		cfg:     cfg,
		servers: make([]*Server, 0, cfg.Servers),
		waitQ:   &WaitQueue{},
		history: make([]Completion, 0),
		traffic: traffic,
		rng:     rng,
	}
	for _, opt := range opts {
		opt(lb)
	}

	lb.enqueueTraffic(cfg.InitialRequests, nil)
	for i := 0; i < cfg.Servers; i++ {
		lb.servers = append(lb.servers, NewServer(i))
	}
	return lb, nil
}

// Run assigns the initial work and then executes exactly cfg.Runtime ticks,
// writing progress lines to sink. Work still queued or in flight at the end
// is left in place.
func (lb *LoadBalancer) Run(sink io.Writer) {
	logrus.Infof("[tick %07d] Starting run: servers=%d, queued=%d, runtime=%d",
		lb.clock, len(lb.servers), lb.waitQ.Len(), lb.cfg.Runtime)
	lb.Start()
	for lb.clock < lb.cfg.Runtime {
		lb.Tick(sink)
	}
	logrus.Infof("[tick %07d] Simulation ended: completed=%d, queued=%d", lb.clock, len(lb.history), lb.waitQ.Len())
}

// Start activates servers in pool order and hands each the head of the queue.
// Servers beyond the queue length stay idle and inactive. Calling Start again
// has no effect.
func (lb *LoadBalancer) Start() {
	if lb.started {
		return
	}
	lb.started = true
	for _, server := range lb.servers {
		if lb.waitQ.Len() == 0 {
			break
		}
		lb.setActive(server, true, "initial assignment")
		lb.assign(server)
	}
}

// Tick advances the clock by one and runs that tick's orchestration:
// advance running servers, feed or deactivate idle ones, maybe inject a burst.
func (lb *LoadBalancer) Tick(sink io.Writer) {
	if sink == nil {
		sink = io.Discard
	}
	lb.Start()
	lb.clock++
	fmt.Fprintf(sink, "\n┌─ CYCLE %d\n", lb.clock)

	// Advance every running server. A server finishing here is not advanced
	// again until it receives new work in the assignment pass below.
	for _, server := range lb.servers {
		if !server.IsRunning() {
			continue
		}
		if server.Advance(sink) {
			lb.complete(server, sink)
		}
	}

	// Feed idle servers from the queue in pool order; idle servers with
	// nothing to take go inactive.
	for _, server := range lb.servers {
		if server.Request() != nil {
			continue
		}
		if lb.waitQ.Len() > 0 {
			if !server.IsActive() {
				lb.setActive(server, true, "queue non-empty")
				fmt.Fprintf(sink, "  ↑ %s reactivated\n", server)
			}
			lb.assign(server)
		} else if server.IsActive() {
			lb.setActive(server, false, "queue empty")
			fmt.Fprintf(sink, "  ⚠ %s deactivated (no requests in queue)\n", server)
		}
	}

	if lb.rng.Between(0, lb.cfg.Burst.DrawMax) == lb.cfg.Burst.Trigger {
		lb.burst(sink)
	}

	fmt.Fprintf(sink, "└───────────────────────────────────\n")

	lb.observeTick()
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		if err := lb.CheckConservation(); err != nil {
			logrus.Errorf("[tick %07d] %v", lb.clock, err)
		}
	}
}

// burst enqueues a randomly sized batch of requests and feeds inactive servers from it.
func (lb *LoadBalancer) burst(sink io.Writer) {
	n := len(lb.servers)
	size := lb.rng.Between(n*lb.cfg.Burst.MinFactor, n*lb.cfg.Burst.MaxFactor)
	lb.enqueueTraffic(size, sink)

	logrus.Debugf("[tick %07d] Burst of %d requests, queue=%d", lb.clock, size, lb.waitQ.Len())
	if lb.trace.Enabled() {
		lb.trace.RecordBurst(trace.BurstRecord{Clock: lb.clock, Size: size, QueueLen: lb.waitQ.Len()})
	}
	for _, r := range lb.recorders {
		r.ObserveBurst(lb.clock, size)
	}

	for _, server := range lb.servers {
		if lb.waitQ.Len() == 0 {
			break
		}
		if server.IsActive() || server.Request() != nil {
			continue
		}
		lb.setActive(server, true, "burst arrival")
		fmt.Fprintf(sink, "  ↑ %s reactivated due to new requests\n", server)
		lb.assign(server)
	}
}

// enqueueTraffic generates n requests into the wait queue. The arrival banner
// is written only when sink is non-nil.
func (lb *LoadBalancer) enqueueTraffic(n int, sink io.Writer) {
	for _, req := range lb.traffic.Generate(n) {
		lb.waitQ.Enqueue(req)
		lb.generated++
	}
	if sink == nil {
		return
	}
	fmt.Fprintf(sink, "\n╔════════════════ NEW REQUESTS ═══════════════╗\n")
	fmt.Fprintf(sink, "║ Added %d new requests to the queue\n", n)
	fmt.Fprintf(sink, "║ Current queue size: %d\n", lb.waitQ.Len())
	fmt.Fprintf(sink, "╚═════════════════════════════════════════════╝\n\n")
}

func (lb *LoadBalancer) assign(server *Server) {
	req := lb.waitQ.Dequeue()
	server.Assign(req)
	if lb.trace.Enabled() {
		lb.trace.RecordAssignment(trace.AssignmentRecord{
			RequestID: req.ID,
			ServerID:  server.ID,
			Clock:     lb.clock,
			QueueLen:  lb.waitQ.Len(),
		})
	}
}

func (lb *LoadBalancer) complete(server *Server, sink io.Writer) {
	elapsed := server.Elapsed()
	req := server.Release()
	req.Complete()

	c := Completion{Request: req, ServerID: server.ID, Tick: lb.clock}
	lb.history = append(lb.history, c)

	fmt.Fprintf(sink, "✓─[%s]─────────────────────────\n", server)
	fmt.Fprintf(sink, "  ├─➤ Completed Request #%d\n", req.ID)
	fmt.Fprintf(sink, "  └─➤ Total time: %d cycles\n", elapsed)
	logrus.Debugf("[tick %07d] %s completed request #%d", lb.clock, server, req.ID)

	for _, r := range lb.recorders {
		r.ObserveCompletion(c)
	}
}

func (lb *LoadBalancer) setActive(server *Server, active bool, reason string) {
	server.SetActive(active)
	logrus.Debugf("[tick %07d] %s active=%v (%s)", lb.clock, server, active, reason)
	if lb.trace.Enabled() {
		lb.trace.RecordActivation(trace.ActivationRecord{
			ServerID: server.ID,
			Clock:    lb.clock,
			Active:   active,
			Reason:   reason,
		})
	}
	for _, r := range lb.recorders {
		r.ObserveActivation(server.ID, lb.clock, active)
	}
}

func (lb *LoadBalancer) observeTick() {
	if len(lb.recorders) == 0 {
		return
	}
	active, running := 0, 0
	for _, server := range lb.servers {
		if server.IsActive() {
			active++
		}
		if server.IsRunning() {
			running++
		}
	}
	for _, r := range lb.recorders {
		r.ObserveTick(lb.clock, lb.waitQ.Len(), active, running)
	}
}

// CheckConservation verifies that every generated request is in exactly one of
// the wait queue, a server slot, or the history.
func (lb *LoadBalancer) CheckConservation() error {
	seen := make(map[int64]string, lb.generated)
	place := func(req *Request, where string) error {
		if prev, ok := seen[req.ID]; ok {
			return fmt.Errorf("request #%d found in both %s and %s", req.ID, prev, where)
		}
		seen[req.ID] = where
		return nil
	}
	for _, req := range lb.waitQ.Items() {
		if err := place(req, "wait queue"); err != nil {
			return err
		}
	}
	for _, server := range lb.servers {
		if req := server.Request(); req != nil {
			if err := place(req, server.String()); err != nil {
				return err
			}
		}
	}
	for _, c := range lb.history {
		if err := place(c.Request, "history"); err != nil {
			return err
		}
	}
	if len(seen) != lb.generated {
		return fmt.Errorf("conservation violated: %d requests generated, %d accounted for", lb.generated, len(seen))
	}
	return nil
}

// Clock returns the number of ticks executed so far.
func (lb *LoadBalancer) Clock() int64 {
	return lb.clock
}

// Servers returns the pool in assignment order. Callers MUST NOT modify the slice.
func (lb *LoadBalancer) Servers() []*Server {
	return lb.servers
}

// Queue returns the wait queue.
func (lb *LoadBalancer) Queue() *WaitQueue {
	return lb.waitQ
}

// History returns the completion history in completion order.
// Callers MUST NOT modify the slice.
func (lb *LoadBalancer) History() []Completion {
	return lb.history
}

// Config returns the configuration the LoadBalancer was built with.
func (lb *LoadBalancer) Config() Config {
	return lb.cfg
}
