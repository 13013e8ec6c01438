package harness

// Step operations recorded in the trace.
const (
	OpBind   = "bind"
	OpInvoke = "invoke"
	OpRebind = "rebind"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq int64  `json:"seq"`
	Op  string `json:"op"`

	// Pos and Value are set for binds.
	Pos   int    `json:"pos,omitempty"`
	Value string `json:"value,omitempty"`

	// Args and Result are set for invocations. Void results are empty.
	Args   []string `json:"args,omitempty"`
	Result string   `json:"result,omitempty"`

	// Error is the error kind when the step failed.
	Error string `json:"error,omitempty"`

	// Type and Species describe the current handle after the step.
	Type    string `json:"type"`
	Species string `json:"species"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	Errors []string `json:"errors,omitempty"`

	// Type and Species describe the final handle.
	Type    string `json:"type"`
	Species string `json:"species"`

	// Rebinds is the number of handles the runtime rebound.
	Rebinds int64 `json:"rebinds"`

	// Units lists the bridge's unit names, sorted.
	Units []string `json:"units"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
