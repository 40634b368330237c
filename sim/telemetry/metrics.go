package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inference-sim/lbsim/sim"
)

// Collector bundles Prometheus metrics for a load balancer run. It implements
// sim.StatsRecorder so the engine drives it directly from its tick loop.
type Collector struct {
	gatherer prometheus.Gatherer

	Completions       prometheus.Counter
	RequestDurations  prometheus.Histogram
	Bursts            prometheus.Counter
	BurstRequests     prometheus.Counter
	ActivationChanges *prometheus.CounterVec

	QueueLength    prometheus.Gauge
	ActiveServers  prometheus.Gauge
	RunningServers prometheus.Gauge
	Clock          prometheus.Gauge
}

var _ sim.StatsRecorder = (*Collector)(nil)

// NewCollector registers load balancer metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	completions, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lbsim_requests_completed_total",
		Help: "Total number of requests completed by any server.",
	}), "lbsim_requests_completed_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lbsim_request_duration_ticks",
		Help:    "Processing duration of completed requests, in ticks.",
		Buckets: prometheus.LinearBuckets(1, 2, 10),
	}), "lbsim_request_duration_ticks")
	if err != nil {
		return nil, err
	}

	bursts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lbsim_bursts_total",
		Help: "Total number of mid-run traffic bursts.",
	}), "lbsim_bursts_total")
	if err != nil {
		return nil, err
	}

	burstRequests, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lbsim_burst_requests_total",
		Help: "Total number of requests that arrived in mid-run bursts.",
	}), "lbsim_burst_requests_total")
	if err != nil {
		return nil, err
	}

	activations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lbsim_server_activation_changes_total",
		Help: "Server activation state changes, labeled by direction (activated|deactivated).",
	}, []string{"direction"})
	activations, err = registerCounterVec(reg, activations, "lbsim_server_activation_changes_total")
	if err != nil {
		return nil, err
	}

	queueLen, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lbsim_queue_length",
		Help: "Requests waiting in the queue at the end of the last tick.",
	}), "lbsim_queue_length")
	if err != nil {
		return nil, err
	}
	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lbsim_active_servers",
		Help: "Servers participating in assignment at the end of the last tick.",
	}), "lbsim_active_servers")
	if err != nil {
		return nil, err
	}
	running, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lbsim_running_servers",
		Help: "Servers holding a request at the end of the last tick.",
	}), "lbsim_running_servers")
	if err != nil {
		return nil, err
	}
	clock, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lbsim_clock_ticks",
		Help: "Simulation clock after the last completed tick.",
	}), "lbsim_clock_ticks")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		Completions:       completions,
		RequestDurations:  durations,
		Bursts:            bursts,
		BurstRequests:     burstRequests,
		ActivationChanges: activations,
		QueueLength:       queueLen,
		ActiveServers:     active,
		RunningServers:    running,
		Clock:             clock,
	}, nil
}

// ObserveTick updates the pool and queue gauges.
func (c *Collector) ObserveTick(clock int64, queueLen, activeServers, runningServers int) {
	if c == nil {
		return
	}
	c.Clock.Set(float64(clock))
	c.QueueLength.Set(float64(queueLen))
	c.ActiveServers.Set(float64(activeServers))
	c.RunningServers.Set(float64(runningServers))
}

// ObserveCompletion counts a completed request and records its duration.
func (c *Collector) ObserveCompletion(done sim.Completion) {
	if c == nil {
		return
	}
	c.Completions.Inc()
	c.RequestDurations.Observe(float64(done.Request.Duration()))
}

// ObserveBurst counts a burst and the requests it brought.
func (c *Collector) ObserveBurst(clock int64, size int) {
	if c == nil {
		return
	}
	c.Bursts.Inc()
	c.BurstRequests.Add(float64(size))
}

// ObserveActivation counts a server activation state change.
func (c *Collector) ObserveActivation(serverID int, clock int64, active bool) {
	if c == nil {
		return
	}
	direction := "deactivated"
	if active {
		direction = "activated"
	}
	c.ActivationChanges.WithLabelValues(direction).Inc()
}

// WriteTextfile writes the current metric values to path in the Prometheus
// text exposition format (node_exporter textfile collector layout).
func (c *Collector) WriteTextfile(path string) error {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return g, nil
}
