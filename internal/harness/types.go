package harness

// TraceEvent is one executed step in a scenario run. Fields are filled
// per step kind; empty fields are omitted from the canonical encoding.
//
// Scores are fixed 6-decimal strings, not floats, so the trace stays
// representable in canonical JSON.
type TraceEvent struct {
	Seq        int64    `json:"seq"`
	Type       string   `json:"type"` // create_user | advance_tick | serve_timeline | action
	Tick       int64    `json:"tick"`
	Actor      string   `json:"actor,omitempty"`
	Username   string   `json:"username,omitempty"`
	Action     string   `json:"action,omitempty"`
	OpID       string   `json:"op_id,omitempty"`
	TargetID   string   `json:"target_id,omitempty"`
	TimelineID string   `json:"timeline_id,omitempty"`
	Content    string   `json:"content,omitempty"`
	Algorithm  string   `json:"algorithm,omitempty"`
	K          int64    `json:"k,omitempty"`
	Status     string   `json:"status,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	EventID    string   `json:"event_id,omitempty"`
	PostIDs    []string `json:"post_ids,omitempty"`
	Scores     []string `json:"scores,omitempty"`
}

// toCanonicalMap renders the event for canonical JSON serialization.
// Only set fields appear, so goldens stay free of noise.
func (e TraceEvent) toCanonicalMap() map[string]any {
	m := map[string]any{
		"seq":  e.Seq,
		"type": e.Type,
		"tick": e.Tick,
	}
	setIf := func(key, val string) {
		if val != "" {
			m[key] = val
		}
	}
	setIf("actor", e.Actor)
	setIf("username", e.Username)
	setIf("action", e.Action)
	setIf("op_id", e.OpID)
	setIf("target_id", e.TargetID)
	setIf("timeline_id", e.TimelineID)
	setIf("content", e.Content)
	setIf("algorithm", e.Algorithm)
	setIf("status", e.Status)
	setIf("reason", e.Reason)
	setIf("event_id", e.EventID)
	if e.K != 0 {
		m["k"] = e.K
	}
	if e.PostIDs != nil {
		ids := make([]any, len(e.PostIDs))
		for i, id := range e.PostIDs {
			ids[i] = id
		}
		m["post_ids"] = ids
	}
	if e.Scores != nil {
		scores := make([]any, len(e.Scores))
		for i, s := range e.Scores {
			scores[i] = s
		}
		m["scores"] = scores
	}
	return m
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds expect and assertion failures. Empty when Pass.
	Errors []string `json:"errors,omitempty"`

	// Hash is the content hash of the final projected state.
	Hash string `json:"hash"`

	// Events is the number of log events at completion.
	Events int64 `json:"events"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}

// AddTrace appends a trace event.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
