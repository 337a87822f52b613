package contract

// Role tags a message sent to the reasoning service.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one role-tagged entry in a reasoning-service prompt.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ParamType is the JSON-schema primitive type of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
)

// Param describes one parameter of a tool schema.
type Param struct {
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
}

// ToolSchema is the identity a tool exposes to the reasoning service.
// Gateways convert it to their provider's wire shape.
type ToolSchema struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Params      map[string]Param `json:"params,omitempty"`
}

// ToolCall is a tool invocation requested by the reasoning service.
// Args is an open map; the tool validates it against its own schema.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// GatewayResponse is the non-streaming result of one reasoning call.
// ToolCalls is empty when the model requests no tool use.
type GatewayResponse struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ConversationMessage is one completed query/answer turn of a session.
// IDs are monotonic within a session; turns are never deleted, only appended.
type ConversationMessage struct {
	ID      int    `json:"id"`
	Query   string `json:"query"`
	Answer  string `json:"answer"`
	Summary string `json:"summary"`
}
