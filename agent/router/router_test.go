package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/scriptautomation123/dexter/agent/contract"
)

type fakeGateway struct {
	resp  *contractx.GatewayResponse
	err   error
	calls int
}

func (f *fakeGateway) Invoke(ctx context.Context, msgs []contractx.Message, tools []contractx.ToolSchema) (*contractx.GatewayResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeGateway) Stream(ctx context.Context, msgs []contractx.Message) (contractx.StreamReader, error) {
	return nil, errors.New("stream not supported in fake")
}

type fakeTool struct {
	name    string
	result  string
	err     error
	delay   time.Duration
	mu      sync.Mutex
	started []time.Time
}

func (f *fakeTool) Schema() contractx.ToolSchema {
	return contractx.ToolSchema{
		Name: f.name,
		Params: map[string]contractx.Param{
			"query": {Type: contractx.ParamString, Required: true},
		},
	}
}

func (f *fakeTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	f.mu.Lock()
	f.started = append(f.started, time.Now())
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func callFor(name string) contractx.ToolCall {
	return contractx.ToolCall{Name: name, Args: map[string]any{"query": "x"}}
}

func TestInvokeAggregatesAllSelectedTools(t *testing.T) {
	t.Parallel()

	quotes := &fakeTool{name: "quote.lookup", result: "AAPL 189.12"}
	news := &fakeTool{name: "news.search", result: "3 headlines"}
	gw := &fakeGateway{resp: &contractx.GatewayResponse{
		ToolCalls: []contractx.ToolCall{callFor("quote.lookup"), callFor("news.search")},
	}}

	r, err := New(gw, []contractx.Tool{quotes, news}, "select tools")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := r.Invoke(context.Background(), map[string]any{"query": "AAPL today"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "AAPL 189.12") || !strings.Contains(out, "3 headlines") {
		t.Fatalf("aggregate missing tool results: %q", out)
	}
	if !strings.Contains(out, "### quote.lookup") {
		t.Fatalf("aggregate missing section header: %q", out)
	}
}

func TestInvokeOneFailureDoesNotSinkSiblings(t *testing.T) {
	t.Parallel()

	ok := &fakeTool{name: "quote.lookup", result: "AAPL 189.12"}
	broken := &fakeTool{name: "news.search", err: contractx.NewToolExecutionError("news.search", "rate limited")}
	gw := &fakeGateway{resp: &contractx.GatewayResponse{
		ToolCalls: []contractx.ToolCall{callFor("quote.lookup"), callFor("news.search")},
	}}

	r, err := New(gw, []contractx.Tool{ok, broken}, "select tools")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := r.Invoke(context.Background(), map[string]any{"query": "AAPL today"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "AAPL 189.12") {
		t.Fatalf("successful result lost: %q", out)
	}
	if !strings.Contains(out, "Error: rate limited") {
		t.Fatalf("failure not folded inline: %q", out)
	}
}

func TestInvokeRunsSelectedToolsConcurrently(t *testing.T) {
	t.Parallel()

	slow1 := &fakeTool{name: "a", result: "1", delay: 100 * time.Millisecond}
	slow2 := &fakeTool{name: "b", result: "2", delay: 100 * time.Millisecond}
	gw := &fakeGateway{resp: &contractx.GatewayResponse{
		ToolCalls: []contractx.ToolCall{callFor("a"), callFor("b")},
	}}

	r, err := New(gw, []contractx.Tool{slow1, slow2}, "select tools")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if _, err := r.Invoke(context.Background(), map[string]any{"query": "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 180*time.Millisecond {
		t.Fatalf("tools did not overlap: took %v", elapsed)
	}
}

func TestInvokeZeroSelectionReturnsModelText(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{resp: &contractx.GatewayResponse{Text: "no external data needed"}}
	r, err := New(gw, []contractx.Tool{&fakeTool{name: "a"}}, "select tools")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := r.Invoke(context.Background(), map[string]any{"query": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "no external data needed" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestInvokeUnknownToolSelectionFoldedInline(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{resp: &contractx.GatewayResponse{
		ToolCalls: []contractx.ToolCall{callFor("ghost.tool")},
	}}
	r, err := New(gw, []contractx.Tool{&fakeTool{name: "a"}}, "select tools")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := r.Invoke(context.Background(), map[string]any{"query": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `unknown tool "ghost.tool"`) {
		t.Fatalf("unknown tool not reported: %q", out)
	}
}

func TestInvokeSelectionFailureIsToolExecutionError(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{err: errors.New("upstream down")}
	r, err := New(gw, []contractx.Tool{&fakeTool{name: "a"}}, "select tools")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = r.Invoke(context.Background(), map[string]any{"query": "x"})
	var toolErr *contractx.ToolExecutionError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolExecutionError, got %v", err)
	}
}

func TestInvokeMissingQueryArgument(t *testing.T) {
	t.Parallel()

	r, err := New(&fakeGateway{}, []contractx.Tool{&fakeTool{name: "a"}}, "select tools")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = r.Invoke(context.Background(), map[string]any{})
	var toolErr *contractx.ToolExecutionError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolExecutionError, got %v", err)
	}
}
