package sim

import "fmt"

// fixedTraffic is a TrafficSource whose requests all share one duration.
// IDs are sequential from 0 across calls, like the real generator.
type fixedTraffic struct {
	duration int
	nextID   int64
	calls    []int // n passed to each Generate call
}

func (f *fixedTraffic) Generate(n int) []*Request {
	f.calls = append(f.calls, n)
	reqs := make([]*Request, 0, n)
	for i := 0; i < n; i++ {
		reqs = append(reqs, NewRequest(f.nextID, "10.0.0.1", fmt.Sprintf("10.0.1.%d", f.nextID%254+1), f.duration))
		f.nextID++
	}
	return reqs
}

// noBursts never hits the default burst trigger (0): every draw returns max.
var noBursts = RandomFunc(func(min, max int) int { return max })

// burstOnTicks fires a burst on the listed ticks (1-indexed draw count) and
// returns size for the burst size draw.
func burstOnTicks(size int, ticks ...int) RandomFunc {
	want := make(map[int]bool, len(ticks))
	for _, t := range ticks {
		want[t] = true
	}
	draw := 0
	expectSize := false
	return func(min, max int) int {
		if expectSize {
			expectSize = false
			return size
		}
		draw++
		if want[draw] {
			expectSize = true
			return 0
		}
		return max
	}
}

// newTestBalancer builds a LoadBalancer over fixedTraffic with the default burst policy.
func newTestBalancer(runtime int64, servers, initial, duration int, rng RandomSource, opts ...Option) (*LoadBalancer, *fixedTraffic) {
	cfg := DefaultConfig()
	cfg.Runtime = runtime
	cfg.Servers = servers
	cfg.InitialRequests = initial
	traffic := &fixedTraffic{duration: duration}
	lb, err := NewLoadBalancer(cfg, traffic, rng, opts...)
	if err != nil {
		panic(err)
	}
	return lb, traffic
}
