package contract

import "context"

// Gateway abstracts a language-model backend behind a uniform
// invoke/stream contract. Implementations own network timeouts and
// retry; callers own cancellation via ctx.
type Gateway interface {
	Invoke(ctx context.Context, msgs []Message, tools []ToolSchema) (*GatewayResponse, error)
	Stream(ctx context.Context, msgs []Message) (StreamReader, error)
}

// StreamReader yields text fragments of a streamed answer. It is finite
// and not restartable; the consumer must drain it to io.EOF or Close it.
type StreamReader interface {
	Recv() (string, error)
	Close()
}

// Tool is a named, schema-described, cancellable unit of external work
// returning text. Failures are *ToolExecutionError.
type Tool interface {
	Schema() ToolSchema
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// History holds prior query/answer turns of a session and selects the
// ones relevant to a new query.
type History interface {
	AddMessage(ctx context.Context, query, answer string) (ConversationMessage, error)
	SelectRelevant(ctx context.Context, query string) ([]ConversationMessage, error)
}
