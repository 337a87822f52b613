package contract

// EventType identifies the kind of event emitted by a run.
type EventType string

const (
	EventThinking    EventType = "thinking"
	EventToolStart   EventType = "tool_start"
	EventToolEnd     EventType = "tool_end"
	EventToolError   EventType = "tool_error"
	EventAnswerStart EventType = "answer_start"
	EventAnswerChunk EventType = "answer_chunk"
	EventDone        EventType = "done"
)

// AgentEvent is one entry of a run's event stream. Exactly one EventDone
// terminates a successful run; a stream that closes without it was
// cancelled or failed.
type AgentEvent struct {
	Type EventType `json:"type"`

	// Text carries thinking fragments, answer chunks, and tool error text.
	Text string `json:"text,omitempty"`

	// Tool fields, set on tool_start / tool_end / tool_error.
	Tool string         `json:"tool,omitempty"`
	Args map[string]any `json:"args,omitempty"`

	// Done fields.
	Answer     string `json:"answer,omitempty"`
	Iterations int    `json:"iterations,omitempty"`
}
