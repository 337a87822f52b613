package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	contractx "github.com/scriptautomation123/dexter/agent/contract"
	toolx "github.com/scriptautomation123/dexter/agent/tool"
)

// openAIGateway talks to the OpenAI chat-completions API (or any
// OpenAI-compatible endpoint) through the official SDK.
type openAIGateway struct {
	client      *openaisdk.Client
	model       string
	maxTokens   int
	temperature float32
}

func newOpenAIGateway(cfg Config) (*openAIGateway, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}

	client := openaisdk.NewClient(opts...)
	return &openAIGateway{
		client:      &client,
		model:       strings.TrimSpace(cfg.Model),
		maxTokens:   cfg.MaxCompletionToken,
		temperature: cfg.Temperature,
	}, nil
}

func (g *openAIGateway) Invoke(ctx context.Context, msgs []contractx.Message, tools []contractx.ToolSchema) (*contractx.GatewayResponse, error) {
	params := g.params(msgs)
	if len(tools) > 0 {
		params.Tools = openAITools(tools)
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %v", contractx.ErrGateway, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: completion returned no choices", contractx.ErrGateway)
	}

	choice := resp.Choices[0].Message
	out := &contractx.GatewayResponse{Text: strings.TrimSpace(choice.Content)}
	for _, tc := range choice.ToolCalls {
		name := strings.TrimSpace(tc.Function.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrSchemaViolation, name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, contractx.ToolCall{Name: name, Args: args})
	}
	return out, nil
}

func (g *openAIGateway) Stream(ctx context.Context, msgs []contractx.Message) (contractx.StreamReader, error) {
	stream := g.client.Chat.Completions.NewStreaming(ctx, g.params(msgs))
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: open completion stream: %v", contractx.ErrGateway, err)
	}
	return &openAIStream{stream: stream}, nil
}

func (g *openAIGateway) params(msgs []contractx.Message) openaisdk.ChatCompletionNewParams {
	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(g.model),
		Messages:    openAIMessages(msgs),
		Temperature: openaisdk.Float(float64(g.temperature)),
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(g.maxTokens))
	}
	return params
}

func openAIMessages(msgs []contractx.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case contractx.RoleSystem:
			out = append(out, openaisdk.SystemMessage(m.Content))
		default:
			out = append(out, openaisdk.UserMessage(m.Content))
		}
	}
	return out
}

func openAITools(tools []contractx.ToolSchema) []openaisdk.ChatCompletionToolParam {
	out := make([]openaisdk.ChatCompletionToolParam, 0, len(tools))
	for _, s := range tools {
		out = append(out, openaisdk.ChatCompletionToolParam{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openaisdk.String(s.Description),
				Parameters:  openaisdk.FunctionParameters(toolx.SchemaJSON(s)),
			},
		})
	}
	return out
}

type openAIStream struct {
	stream *ssestream.Stream[openaisdk.ChatCompletionChunk]
}

func (s *openAIStream) Recv() (string, error) {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		return "", fmt.Errorf("%w: read completion stream: %v", contractx.ErrGateway, err)
	}
	return "", io.EOF
}

func (s *openAIStream) Close() {
	s.stream.Close()
}
