package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	Activations        int
	Deactivations      int
	Bursts             int
	BurstRequests      int
	MeanBurstSize      float64
	MaxBurstSize       int
	Assignments        int
	ServerDistribution map[int]int // server ID → count of requests assigned
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		ServerDistribution: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	for _, a := range st.Activations {
		if a.Active {
			summary.Activations++
		} else {
			summary.Deactivations++
		}
	}

	summary.Bursts = len(st.Bursts)
	for _, b := range st.Bursts {
		summary.BurstRequests += b.Size
		if b.Size > summary.MaxBurstSize {
			summary.MaxBurstSize = b.Size
		}
	}
	if summary.Bursts > 0 {
		summary.MeanBurstSize = float64(summary.BurstRequests) / float64(summary.Bursts)
	}

	summary.Assignments = len(st.Assignments)
	for _, a := range st.Assignments {
		summary.ServerDistribution[a.ServerID]++
	}

	return summary
}
