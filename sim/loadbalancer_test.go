package sim

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/lbsim/sim/trace"
)

func TestNewLoadBalancer_RejectsBadInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servers = 2

	_, err := NewLoadBalancer(cfg, nil, noBursts)
	assert.Error(t, err, "nil traffic source")

	_, err = NewLoadBalancer(cfg, &fixedTraffic{duration: 2}, nil)
	assert.Error(t, err, "nil random source")

	bad := cfg
	bad.Runtime = -1
	_, err = NewLoadBalancer(bad, &fixedTraffic{duration: 2}, noBursts)
	assert.ErrorContains(t, err, "invalid config")
}

func TestNewLoadBalancer_EnqueuesInitialBurstSilently(t *testing.T) {
	// GIVEN a config with 7 initial requests and 3 servers
	lb, traffic := newTestBalancer(10, 3, 7, 2, noBursts)

	// THEN the queue holds all 7 in ID order and no server has work yet
	assert.Equal(t, []int{7}, traffic.calls)
	require.Equal(t, 7, lb.Queue().Len())
	assert.Equal(t, int64(0), lb.Queue().Peek().ID)
	require.Len(t, lb.Servers(), 3)
	for i, s := range lb.Servers() {
		assert.Equal(t, i, s.ID)
		assert.False(t, s.IsActive())
		assert.Nil(t, s.Request())
	}
	assert.Equal(t, int64(0), lb.Clock())
}

func TestStart_QueueShorterThanPool_SurplusServersStayIdle(t *testing.T) {
	// GIVEN 3 servers and only 2 queued requests
	lb, _ := newTestBalancer(10, 3, 2, 4, noBursts)

	// WHEN the initial assignment runs
	lb.Start()

	// THEN servers 0 and 1 are busy, server 2 is idle and inactive
	servers := lb.Servers()
	assert.True(t, servers[0].IsActive())
	assert.True(t, servers[0].IsRunning())
	assert.Equal(t, int64(0), servers[0].Request().ID)
	assert.True(t, servers[1].IsRunning())
	assert.Equal(t, int64(1), servers[1].Request().ID)
	assert.False(t, servers[2].IsActive())
	assert.False(t, servers[2].IsRunning())
	assert.Nil(t, servers[2].Request())
	assert.Equal(t, 0, lb.Queue().Len())

	// AND calling Start again changes nothing
	lb.Start()
	assert.Equal(t, int64(0), servers[0].Request().ID)
}

func TestRun_TwoServersDurationTwo_BothCompleteAtTickTwoThenDeactivate(t *testing.T) {
	// GIVEN runtime=5, 2 servers, 2 requests of duration 2
	lb, _ := newTestBalancer(5, 2, 2, 2, noBursts)

	// WHEN the run executes
	lb.Run(nil)

	// THEN both complete at tick 2 and, the queue being empty, both go inactive
	history := lb.History()
	require.Len(t, history, 2)
	for i, c := range history {
		assert.Equal(t, int64(2), c.Tick)
		assert.Equal(t, i, c.ServerID)
		assert.True(t, c.Request.IsCompleted())
	}
	for _, s := range lb.Servers() {
		assert.False(t, s.IsActive())
		assert.False(t, s.IsRunning())
		assert.Nil(t, s.Request())
	}
	assert.Equal(t, 0, lb.Queue().Len())
	assert.Equal(t, int64(5), lb.Clock())
}

func TestRun_TwoServersDurationThree_StillRunningMidway(t *testing.T) {
	// GIVEN runtime=2, 2 servers, 2 requests of duration 3
	lb, _ := newTestBalancer(2, 2, 2, 3, noBursts)

	// WHEN the run executes
	lb.Run(nil)

	// THEN both servers still run with 2 ticks elapsed and nothing is complete
	for _, s := range lb.Servers() {
		assert.True(t, s.IsRunning())
		assert.Equal(t, 2, s.Elapsed())
	}
	assert.Empty(t, lb.History())
	assert.Equal(t, 2, lb.Summary().InFlight)
}

func TestRun_SingleServerDurationOne_ReassignsImmediately(t *testing.T) {
	// GIVEN 1 server and 3 requests of duration 1, runtime 5
	lb, _ := newTestBalancer(5, 1, 3, 1, noBursts)

	// WHEN the run executes
	lb.Run(nil)

	// THEN request k completes at tick k+1 on server 0
	history := lb.History()
	require.Len(t, history, 3)
	for i, c := range history {
		assert.Equal(t, int64(i), c.Request.ID)
		assert.Equal(t, int64(i+1), c.Tick)
		assert.Equal(t, 0, c.ServerID)
	}
	summary := lb.Summary()
	assert.Equal(t, 3, summary.Completed)
	assert.Equal(t, 0, summary.Pending)
	assert.InDelta(t, 3.0/5.0, summary.AveragePerTick, 1e-9)
	assert.False(t, lb.Servers()[0].IsActive())
}

func TestRun_EmptyInitialBurst_NoBursts_AllServersStayIdle(t *testing.T) {
	// GIVEN 3 servers and no initial requests, and no burst ever fires
	lb, _ := newTestBalancer(50, 3, 0, 2, noBursts)

	// WHEN the run executes
	lb.Run(nil)

	// THEN history is empty and inactive servers never advanced
	assert.Empty(t, lb.History())
	for _, s := range lb.Servers() {
		assert.False(t, s.IsActive())
		assert.False(t, s.IsRunning())
		assert.Equal(t, 0, s.Elapsed())
		assert.Nil(t, s.Request())
	}
	assert.Equal(t, 0, lb.Summary().Completed)
}

func TestRun_CompletionAsQueueEmpties_LaterServerDeactivates(t *testing.T) {
	// GIVEN 2 servers and 3 requests of duration 2
	lb, _ := newTestBalancer(6, 2, 3, 2, noBursts)

	// WHEN the run executes
	lb.Run(nil)

	// THEN server 0 takes the last request at tick 2 and server 1 goes inactive
	history := lb.History()
	require.Len(t, history, 3)
	assert.Equal(t, Completion{Request: history[0].Request, ServerID: 0, Tick: 2}, history[0])
	assert.Equal(t, Completion{Request: history[1].Request, ServerID: 1, Tick: 2}, history[1])
	assert.Equal(t, Completion{Request: history[2].Request, ServerID: 0, Tick: 4}, history[2])
	assert.Equal(t, int64(2), history[2].Request.ID)
}

func TestRun_RoundRobin_EveryServerReassignedBeforeAnySecondReassignment(t *testing.T) {
	// GIVEN 3 servers, 12 uniform requests (more than servers)
	lb, _ := newTestBalancer(8, 3, 12, 2, noBursts, WithTrace(trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelAssignments})))

	// WHEN the run executes
	lb.Run(nil)

	// THEN completion i belongs to server i%3 and request i
	history := lb.History()
	require.Len(t, history, 12)
	for i, c := range history {
		assert.Equal(t, i%3, c.ServerID, "completion %d", i)
		assert.Equal(t, int64(i), c.Request.ID, "completion %d", i)
		assert.Equal(t, int64(2*(i/3+1)), c.Tick, "completion %d", i)
	}
}

func TestRun_AssignmentTrace_ServersInIndexOrder(t *testing.T) {
	// GIVEN assignment tracing over 2 servers and 6 requests
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelAssignments})
	lb, _ := newTestBalancer(6, 2, 6, 2, noBursts, WithTrace(st))

	// WHEN the run executes
	lb.Run(nil)

	// THEN assignments alternate 0,1,0,1,... with increasing request IDs
	require.Len(t, st.Assignments, 6)
	for i, a := range st.Assignments {
		assert.Equal(t, i%2, a.ServerID)
		assert.Equal(t, int64(i), a.RequestID)
	}
	summary := trace.Summarize(st)
	assert.Equal(t, 3, summary.ServerDistribution[0])
	assert.Equal(t, 3, summary.ServerDistribution[1])
}

func TestTick_Burst_ReactivatesIdleServers(t *testing.T) {
	// GIVEN 2 idle servers, and a burst of 4 on the 3rd tick
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	lb, traffic := newTestBalancer(8, 2, 0, 2, burstOnTicks(4, 3), WithTrace(st))
	var sink bytes.Buffer

	// WHEN three ticks run
	lb.Tick(&sink)
	lb.Tick(&sink)
	assert.Nil(t, lb.Servers()[0].Request())
	lb.Tick(&sink)

	// THEN both servers were reactivated and assigned from the burst
	assert.Equal(t, []int{0, 4}, traffic.calls)
	assert.Equal(t, int64(0), lb.Servers()[0].Request().ID)
	assert.Equal(t, int64(1), lb.Servers()[1].Request().ID)
	assert.True(t, lb.Servers()[0].IsActive())
	assert.Equal(t, 2, lb.Queue().Len())
	assert.Contains(t, sink.String(), "Added 4 new requests to the queue")
	assert.Contains(t, sink.String(), "Current queue size: 4")
	assert.Contains(t, sink.String(), "Server-1 reactivated due to new requests")
	require.Len(t, st.Bursts, 1)
	assert.Equal(t, trace.BurstRecord{Clock: 3, Size: 4, QueueLen: 4}, st.Bursts[0])

	// WHEN the run continues to its end
	lb.Run(&sink)

	// THEN all four burst requests complete
	assert.Len(t, lb.History(), 4)
	assert.Equal(t, int64(8), lb.Clock())
	assert.NoError(t, lb.CheckConservation())
}

func TestTick_Burst_WhilePoolBusy_OnlyGrowsQueue(t *testing.T) {
	// GIVEN 2 busy servers with long requests and a burst of 5 on tick 1
	lb, _ := newTestBalancer(3, 2, 2, 10, burstOnTicks(5, 1))

	// WHEN one tick runs
	lb.Tick(nil)

	// THEN the queue grew and the servers kept their original requests
	assert.Equal(t, 5, lb.Queue().Len())
	assert.Equal(t, int64(0), lb.Servers()[0].Request().ID)
	assert.Equal(t, int64(1), lb.Servers()[1].Request().ID)
	assert.Equal(t, 1, lb.Servers()[0].Elapsed())
}

func TestTick_BurstDraws_UseConfiguredPolicy(t *testing.T) {
	// GIVEN a custom burst policy and a recording random source
	cfg := DefaultConfig()
	cfg.Servers = 3
	cfg.Runtime = 1
	cfg.Burst = BurstConfig{DrawMax: 7, Trigger: 7, MinFactor: 2, MaxFactor: 4}
	var draws [][2]int
	rng := RandomFunc(func(min, max int) int {
		draws = append(draws, [2]int{min, max})
		return max
	})
	lb, err := NewLoadBalancer(cfg, &fixedTraffic{duration: 2}, rng)
	require.NoError(t, err)

	// WHEN one tick runs
	lb.Tick(nil)

	// THEN the trigger draw is [0, 7] and, having hit 7, the size draw is [6, 12]
	require.Len(t, draws, 2)
	assert.Equal(t, [2]int{0, 7}, draws[0])
	assert.Equal(t, [2]int{6, 12}, draws[1])
	assert.Equal(t, 12, lb.Queue().Len()+countHeld(lb))
}

func countHeld(lb *LoadBalancer) int {
	n := 0
	for _, s := range lb.Servers() {
		if s.Request() != nil {
			n++
		}
	}
	return n
}

func TestRun_Conservation_HoldsAtEveryTick(t *testing.T) {
	// GIVEN a seeded run with real burst draws
	lb, _ := newTestBalancer(400, 4, 20, 3, NewSeededRNG(NewSimulationKey(11)))

	// WHEN ticking through the whole run
	lb.Start()
	require.NoError(t, lb.CheckConservation())
	for lb.Clock() < 400 {
		lb.Tick(nil)
		// THEN every request is in exactly one place after every tick
		require.NoError(t, lb.CheckConservation(), "tick %d", lb.Clock())
	}

	// AND history ticks never decrease and all history requests are complete
	var last int64
	for _, c := range lb.History() {
		assert.GreaterOrEqual(t, c.Tick, last)
		assert.True(t, c.Request.IsCompleted())
		last = c.Tick
	}
}

func TestRun_SameSeed_SameHistory(t *testing.T) {
	run := func() []Completion {
		lb, _ := newTestBalancer(300, 3, 10, 4, NewSeededRNG(NewSimulationKey(5)))
		lb.Run(nil)
		return lb.History()
	}
	a, b := run(), run()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Request.ID, b[i].Request.ID)
		assert.Equal(t, a[i].ServerID, b[i].ServerID)
		assert.Equal(t, a[i].Tick, b[i].Tick)
	}
}

func TestRun_ZeroRuntime_OnlyInitialAssignment(t *testing.T) {
	lb, _ := newTestBalancer(0, 2, 5, 2, noBursts)

	lb.Run(nil)

	assert.Equal(t, int64(0), lb.Clock())
	assert.Empty(t, lb.History())
	summary := lb.Summary()
	assert.Equal(t, 0.0, summary.AveragePerTick)
	assert.Equal(t, 3, summary.Pending)
	assert.Equal(t, 2, summary.InFlight)
}

func TestRun_Sink_FramesEveryTick(t *testing.T) {
	// GIVEN a run of 4 ticks where nothing changes after tick 2
	lb, _ := newTestBalancer(4, 1, 1, 2, noBursts)
	var sink bytes.Buffer

	// WHEN it runs
	lb.Run(&sink)

	// THEN every tick has a header and footer, and the lifecycle is logged
	out := sink.String()
	for _, header := range []string{"CYCLE 1\n", "CYCLE 2\n", "CYCLE 3\n", "CYCLE 4\n"} {
		assert.Contains(t, out, header)
	}
	assert.Equal(t, 4, strings.Count(out, "└───────────────────────────────────"))
	assert.Contains(t, out, "Completed Request #0")
	assert.Contains(t, out, "Total time: 2 cycles")
	assert.Contains(t, out, "Server-0 deactivated (no requests in queue)")
	assert.NotContains(t, out, "NEW REQUESTS", "initial burst must not be reported")
}

type countingRecorder struct {
	ticks         int
	completions   int
	bursts        []int
	activations   int
	deactivations int
	lastQueueLen  int
}

func (r *countingRecorder) ObserveTick(clock int64, queueLen, active, running int) {
	r.ticks++
	r.lastQueueLen = queueLen
}
func (r *countingRecorder) ObserveCompletion(c Completion) { r.completions++ }
func (r *countingRecorder) ObserveBurst(clock int64, size int) {
	r.bursts = append(r.bursts, size)
}
func (r *countingRecorder) ObserveActivation(serverID int, clock int64, active bool) {
	if active {
		r.activations++
	} else {
		r.deactivations++
	}
}

func TestRun_Recorders_SeeEveryEvent(t *testing.T) {
	// GIVEN two recorders over a run with one burst on tick 5
	r1, r2 := &countingRecorder{}, &countingRecorder{}
	lb, _ := newTestBalancer(20, 2, 2, 2, burstOnTicks(3, 5), WithRecorder(r1), WithRecorder(r2), WithRecorder(nil))

	// WHEN the run executes
	lb.Run(nil)

	// THEN both recorders observed the same activity
	for _, r := range []*countingRecorder{r1, r2} {
		assert.Equal(t, 20, r.ticks)
		assert.Equal(t, len(lb.History()), r.completions)
		assert.Equal(t, []int{3}, r.bursts)
		// initial 2, burst reactivates 2; deactivated at tick 2 and again after the burst drains
		assert.Equal(t, 4, r.activations)
		assert.Equal(t, 4, r.deactivations)
		assert.Equal(t, 0, r.lastQueueLen)
	}
	assert.Len(t, lb.History(), 5)
}
