package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/scriptautomation123/dexter/agent/contract"
	toolx "github.com/scriptautomation123/dexter/agent/tool"
)

const (
	// Name is the single coarse capability the router exposes upward.
	Name = "search"

	noToolsSelected = "No data tools were selected for this request."
)

// Router is a meta-tool: it presents itself to the agent loop as one
// ordinary tool, and internally asks the reasoning service to pick among
// the concrete data tools, then fans out to the selected ones
// concurrently. The indirection keeps the outer prompt's tool-schema
// footprint at one entry regardless of how many data tools exist.
type Router struct {
	gateway contractx.Gateway
	tools   map[string]contractx.Tool
	schemas []contractx.ToolSchema
	prompt  string
}

func New(gateway contractx.Gateway, tools []contractx.Tool, systemPrompt string) (*Router, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if len(tools) == 0 {
		return nil, errors.New("at least one data tool is required")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: router prompt", contractx.ErrPromptMissing)
	}

	byName := make(map[string]contractx.Tool, len(tools))
	for _, t := range tools {
		name := strings.TrimSpace(t.Schema().Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool with empty name", contractx.ErrValidation)
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("%w: duplicate tool %q", contractx.ErrValidation, name)
		}
		byName[name] = t
	}

	return &Router{
		gateway: gateway,
		tools:   byName,
		schemas: toolx.Schemas(tools),
		prompt:  systemPrompt,
	}, nil
}

func (r *Router) Schema() contractx.ToolSchema {
	return contractx.ToolSchema{
		Name:        Name,
		Description: "Search external data sources (market data, filings, web) for the information needed to answer a research request.",
		Params: map[string]contractx.Param{
			"query": {
				Type:        contractx.ParamString,
				Description: "Natural language description of the data needed",
				Required:    true,
			},
		},
	}
}

// Invoke selects and executes concrete tools for the request and returns
// one formatted aggregate. Individual tool failures become inline error
// markers; only the selection call itself can fail the router, and it
// does so as a ToolExecutionError so the outer loop absorbs it as data.
func (r *Router) Invoke(ctx context.Context, args map[string]any) (string, error) {
	if err := toolx.ValidateArgs(r.Schema(), args); err != nil {
		return "", err
	}
	query, err := toolx.StringArg(Name, args, "query")
	if err != nil {
		return "", err
	}
	if query == "" {
		return "", contractx.NewToolExecutionError(Name, "query is empty")
	}

	resp, err := r.gateway.Invoke(ctx, []contractx.Message{
		contractx.SystemMessage(r.prompt),
		contractx.UserMessage(query),
	}, r.schemas)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", contractx.NewToolExecutionError(Name, "tool selection failed: %v", err)
	}

	if len(resp.ToolCalls) == 0 {
		if resp.Text != "" {
			return resp.Text, nil
		}
		return noToolsSelected, nil
	}

	log.Debug().Int("selected", len(resp.ToolCalls)).Str("query", query).
		Msg("router fanning out to data tools")

	results := r.execute(ctx, resp.ToolCalls)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return formatAggregate(resp.ToolCalls, results), nil
}

// execute runs every selected call concurrently, sharing the outer run's
// cancellation. Failures are folded into the result slot, never
// propagated, so one slow or broken source cannot sink its siblings.
func (r *Router) execute(ctx context.Context, calls []contractx.ToolCall) []string {
	results := make([]string, len(calls))
	g, gctx := errgroup.WithContext(ctx)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = r.executeOne(gctx, call)
			return nil
		})
	}
	g.Wait()
	return results
}

func (r *Router) executeOne(ctx context.Context, call contractx.ToolCall) string {
	t, ok := r.tools[call.Name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}
	if err := toolx.ValidateArgs(t.Schema(), call.Args); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	out, err := t.Invoke(ctx, call.Args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return out
}

func formatAggregate(calls []contractx.ToolCall, results []string) string {
	var b strings.Builder
	for i, call := range calls {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### %s%s\n%s", call.Name, formatArgs(call.Args), results[i])
	}
	return b.String()
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
