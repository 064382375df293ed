package harness

// TraceEvent is one handled circuit event, in handling order. Payload is
// the canonical JSON of the emitted value. Error carries the failure
// cause for failure events and the dispatch error for events that
// rolled back.
type TraceEvent struct {
	ID      string `json:"id"`
	Seq     int64  `json:"seq"`
	Emitter string `json:"emitter,omitempty"`
	Kind    string `json:"kind"`
	Payload string `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
	Outcome string `json:"outcome"`
}

// Result is the outcome of a scenario execution: the event trace, what
// every probe observed, and any step or assertion failures.
type Result struct {
	// ScenarioName echoes the scenario so failures identify themselves.
	ScenarioName string `json:"scenario_name"`

	// Pass indicates overall success. True until an error is added.
	Pass bool `json:"pass"`

	// Trace contains every handled event in handling order. Used for
	// event assertions and golden comparison.
	Trace []TraceEvent `json:"trace"`

	// Probes maps each probe name to the signal lines it observed.
	Probes map[string][]string `json:"probes"`

	// Errors contains step and assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		ScenarioName: name,
		Pass:         true,
		Trace:        []TraceEvent{},
		Probes:       make(map[string][]string),
		Errors:       []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
