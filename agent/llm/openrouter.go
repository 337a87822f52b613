package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/scriptautomation123/dexter/agent/contract"
	toolx "github.com/scriptautomation123/dexter/agent/tool"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// Models whose OpenRouter reasoning stream must be suppressed.
var openRouterReasoningBlacklist = map[string]bool{
	"x-ai/grok-4.1-fast": true,
}

// openRouterGateway drives an OpenRouter model through eino's
// tool-calling chat-model component.
type openRouterGateway struct {
	base einomodel.ToolCallingChatModel
}

func newOpenRouterGateway(ctx context.Context, cfg Config) (*openRouterGateway, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	modelName := strings.TrimSpace(cfg.Model)

	maxTokens := cfg.MaxCompletionToken
	temperature := cfg.Temperature
	conf := &openaimodel.ChatModelConfig{
		BaseURL:     baseURL,
		APIKey:      strings.TrimSpace(cfg.APIKey),
		Model:       modelName,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		Timeout:     cfg.Timeout,
	}
	if openRouterReasoningBlacklist[modelName] {
		conf.ExtraFields = map[string]any{
			"reasoning": map[string]any{
				"exclude": true,
				"effort":  "none",
			},
		}
	}

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: create openrouter chat model: %v", contractx.ErrGateway, err)
	}
	return &openRouterGateway{base: m}, nil
}

func (g *openRouterGateway) Invoke(ctx context.Context, msgs []contractx.Message, tools []contractx.ToolSchema) (*contractx.GatewayResponse, error) {
	model := einomodel.BaseChatModel(g.base)
	if len(tools) > 0 {
		infos := make([]*schema.ToolInfo, 0, len(tools))
		for _, s := range tools {
			infos = append(infos, toolx.EinoToolInfo(s))
		}
		bound, err := g.base.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrGateway, err)
		}
		model = bound
	}

	out, err := model.Generate(ctx, einoMessages(msgs))
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %v", contractx.ErrGateway, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: empty model response", contractx.ErrGateway)
	}

	resp := &contractx.GatewayResponse{Text: strings.TrimSpace(out.Content)}
	for _, call := range out.ToolCalls {
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrSchemaViolation, name, err)
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, contractx.ToolCall{Name: name, Args: args})
	}
	return resp, nil
}

func (g *openRouterGateway) Stream(ctx context.Context, msgs []contractx.Message) (contractx.StreamReader, error) {
	sr, err := g.base.Stream(ctx, einoMessages(msgs))
	if err != nil {
		return nil, fmt.Errorf("%w: open stream: %v", contractx.ErrGateway, err)
	}
	return &openRouterStream{reader: sr}, nil
}

func einoMessages(msgs []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case contractx.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}

type openRouterStream struct {
	reader *schema.StreamReader[*schema.Message]
}

func (s *openRouterStream) Recv() (string, error) {
	for {
		msg, err := s.reader.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", fmt.Errorf("%w: read stream: %v", contractx.ErrGateway, err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		return msg.Content, nil
	}
}

func (s *openRouterStream) Close() {
	s.reader.Close()
}
