package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures activation changes and bursts.
	TraceLevelDecisions TraceLevel = "decisions"
	// TraceLevelAssignments additionally captures every request assignment.
	TraceLevelAssignments TraceLevel = "assignments"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:        true,
	TraceLevelDecisions:   true,
	TraceLevelAssignments: true,
	"":                    true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects decision records during a simulation.
type SimulationTrace struct {
	Config      TraceConfig
	Activations []ActivationRecord
	Assignments []AssignmentRecord
	Bursts      []BurstRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:      config,
		Activations: make([]ActivationRecord, 0),
		Assignments: make([]AssignmentRecord, 0),
		Bursts:      make([]BurstRecord, 0),
	}
}

// Enabled reports whether any records should be collected.
// Safe on a nil trace.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level != TraceLevelNone && st.Config.Level != ""
}

// RecordActivation appends an activation decision record.
func (st *SimulationTrace) RecordActivation(record ActivationRecord) {
	st.Activations = append(st.Activations, record)
}

// RecordAssignment appends an assignment record. Only kept at TraceLevelAssignments.
func (st *SimulationTrace) RecordAssignment(record AssignmentRecord) {
	if st.Config.Level != TraceLevelAssignments {
		return
	}
	st.Assignments = append(st.Assignments, record)
}

// RecordBurst appends a burst record.
func (st *SimulationTrace) RecordBurst(record BurstRecord) {
	st.Bursts = append(st.Bursts, record)
}
