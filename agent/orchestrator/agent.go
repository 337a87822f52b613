package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/scriptautomation123/dexter/agent/contract"
	scratchx "github.com/scriptautomation123/dexter/agent/scratchpad"
	toolx "github.com/scriptautomation123/dexter/agent/tool"
)

const (
	defaultMaxIterations = 10
	defaultScratchpadDir = ".dexter/runs"

	// Emitted when the iteration budget runs out before the model
	// produced any usable text or tool data.
	noAnswerText = "I was unable to produce an answer within the allotted research budget."
)

// Prompts are the system prompts the loop's two phases use.
type Prompts struct {
	Agent  string
	Answer string
}

type Config struct {
	MaxIterations int
	ScratchpadDir string
}

// Agent is the loop controller: it owns one scratchpad per run, calls
// the reasoning gateway, decides between further tool execution and
// final-answer generation, and emits the run's event stream.
type Agent struct {
	gateway contractx.Gateway
	tools   map[string]contractx.Tool
	schemas []contractx.ToolSchema
	history contractx.History
	prompts Prompts

	maxIterations int
	scratchDir    string
	now           func() time.Time
}

func New(gateway contractx.Gateway, tools []contractx.Tool, hist contractx.History, prompts Prompts, cfg Config) (*Agent, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if strings.TrimSpace(prompts.Agent) == "" || strings.TrimSpace(prompts.Answer) == "" {
		return nil, fmt.Errorf("%w: agent prompts", contractx.ErrPromptMissing)
	}
	if hist == nil {
		hist = noopHistory{}
	}

	byName := make(map[string]contractx.Tool, len(tools))
	for _, t := range tools {
		name := strings.TrimSpace(t.Schema().Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool with empty name", contractx.ErrValidation)
		}
		byName[name] = t
	}

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	scratchDir := strings.TrimSpace(cfg.ScratchpadDir)
	if scratchDir == "" {
		scratchDir = defaultScratchpadDir
	}

	return &Agent{
		gateway:       gateway,
		tools:         byName,
		schemas:       toolx.Schemas(tools),
		history:       hist,
		prompts:       prompts,
		maxIterations: maxIterations,
		scratchDir:    scratchDir,
		now:           time.Now,
	}, nil
}

// Run is the handle to one executing query. Consume Events until it
// closes; a stream without a done event was cancelled or failed, and
// Err (valid only after the channel closes) tells which.
type Run struct {
	events chan contractx.AgentEvent
	err    error
}

func (r *Run) Events() <-chan contractx.AgentEvent {
	return r.events
}

func (r *Run) Err() error {
	return r.err
}

// Run starts the loop for one query. The scratchpad is created, with its
// init entry durable, before the loop goroutine begins.
func (a *Agent) Run(ctx context.Context, query string) *Run {
	r := &Run{events: make(chan contractx.AgentEvent, 64)}

	pad, err := scratchx.New(a.scratchDir, query, scratchx.WithClock(a.now))
	if err != nil {
		r.err = fmt.Errorf("create scratchpad: %w", err)
		close(r.events)
		return r
	}

	go a.loop(ctx, r, pad)
	return r
}

func (a *Agent) loop(ctx context.Context, r *Run, pad *scratchx.Scratchpad) {
	defer close(r.events)
	defer pad.Close()

	query := pad.Query()
	var lastText string

	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			r.err = err
			return
		}

		msgs := a.loopPrompt(ctx, query, pad, iteration == 1)
		resp, err := a.gateway.Invoke(ctx, msgs, a.schemas)
		if err != nil {
			r.err = runErr(ctx, err)
			return
		}
		lastText = resp.Text

		if len(resp.ToolCalls) == 0 {
			// A pure-text response is the answer, not thinking.
			if !pad.HasToolResults() {
				a.deliverText(ctx, r, query, resp.Text, iteration)
			} else {
				a.streamAnswer(ctx, r, pad, query, iteration)
			}
			return
		}

		if resp.Text != "" {
			if err := pad.AddThinking(resp.Text); err != nil {
				r.err = err
				return
			}
			if !emit(ctx, r, contractx.AgentEvent{Type: contractx.EventThinking, Text: resp.Text}) {
				r.err = ctx.Err()
				return
			}
		}

		if !a.executeToolCalls(ctx, r, pad, resp.ToolCalls) {
			if r.err == nil {
				r.err = ctx.Err()
			}
			return
		}
	}

	// Iteration budget exhausted without a natural finish: settle the
	// run with the best available answer instead of looping or crashing.
	if pad.HasToolResults() {
		a.streamAnswer(ctx, r, pad, query, a.maxIterations)
		return
	}
	if lastText == "" {
		lastText = noAnswerText
	}
	a.deliverText(ctx, r, query, lastText, a.maxIterations)
}

// deliverText finishes the run with text already in hand: answer_start,
// one answer_chunk carrying the whole text, then done.
func (a *Agent) deliverText(ctx context.Context, r *Run, query, text string, iterations int) {
	if !emit(ctx, r, contractx.AgentEvent{Type: contractx.EventAnswerStart}) ||
		!emit(ctx, r, contractx.AgentEvent{Type: contractx.EventAnswerChunk, Text: text}) {
		r.err = ctx.Err()
		return
	}
	a.finish(ctx, r, query, text, iterations)
}

// streamAnswer is the Answering state: reload the full tool contexts
// (the one place they are ever read), then stream the answer chunk by
// chunk.
func (a *Agent) streamAnswer(ctx context.Context, r *Run, pad *scratchx.Scratchpad, query string, iterations int) {
	msgs := []contractx.Message{
		contractx.SystemMessage(a.prompts.Answer),
		contractx.UserMessage(answerInput(query, pad.FullContexts())),
	}

	sr, err := a.gateway.Stream(ctx, msgs)
	if err != nil {
		r.err = runErr(ctx, err)
		return
	}
	defer sr.Close()

	if !emit(ctx, r, contractx.AgentEvent{Type: contractx.EventAnswerStart}) {
		r.err = ctx.Err()
		return
	}

	var answer strings.Builder
	for {
		chunk, err := sr.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			r.err = runErr(ctx, err)
			return
		}
		answer.WriteString(chunk)
		if !emit(ctx, r, contractx.AgentEvent{Type: contractx.EventAnswerChunk, Text: chunk}) {
			r.err = ctx.Err()
			return
		}
	}

	a.finish(ctx, r, query, answer.String(), iterations)
}

func (a *Agent) finish(ctx context.Context, r *Run, query, answer string, iterations int) {
	if !emit(ctx, r, contractx.AgentEvent{
		Type:       contractx.EventDone,
		Answer:     answer,
		Iterations: iterations,
	}) {
		r.err = ctx.Err()
		return
	}

	// History is written only after a completed run; an incomplete run
	// must never leave a turn behind.
	if _, err := a.history.AddMessage(ctx, query, answer); err != nil {
		log.Warn().Err(err).Msg("conversation history update failed")
	}
}

// executeToolCalls runs the iteration's requested calls in order,
// recording each outcome. Returns false when cancellation interrupted
// execution; no event follows the interruption.
func (a *Agent) executeToolCalls(ctx context.Context, r *Run, pad *scratchx.Scratchpad, calls []contractx.ToolCall) bool {
	for _, call := range calls {
		if ctx.Err() != nil {
			return false
		}
		if !emit(ctx, r, contractx.AgentEvent{Type: contractx.EventToolStart, Tool: call.Name, Args: call.Args}) {
			return false
		}

		result, summary, failed := a.invokeTool(ctx, call)
		if ctx.Err() != nil {
			return false
		}

		evt := contractx.AgentEvent{Type: contractx.EventToolEnd, Tool: call.Name}
		if failed {
			evt.Type = contractx.EventToolError
			evt.Text = summary
		}
		if !emit(ctx, r, evt) {
			return false
		}

		if err := pad.AddToolResult(call.Name, call.Args, result, summary); err != nil {
			r.err = err
			return false
		}
	}
	return true
}

// invokeTool executes one call. Tool failures are absorbed: the result
// becomes error text available to the next reasoning call so the model
// can adapt its plan.
func (a *Agent) invokeTool(ctx context.Context, call contractx.ToolCall) (result, summary string, failed bool) {
	t, ok := a.tools[call.Name]
	if !ok {
		msg := fmt.Sprintf("unknown tool %q", call.Name)
		return "Error: " + msg, msg, true
	}

	out, err := t.Invoke(ctx, call.Args)
	if err != nil {
		return "Error: " + err.Error(), fmt.Sprintf("%s failed: %s", call.Name, err.Error()), true
	}
	return out, summarizeResult(call.Name, out), false
}

// loopPrompt builds the per-iteration prompt. Iteration 1 carries the
// relevant prior-turn summaries; later iterations carry the scratchpad's
// compact tool summaries and never the full payloads.
func (a *Agent) loopPrompt(ctx context.Context, query string, pad *scratchx.Scratchpad, first bool) []contractx.Message {
	var user strings.Builder
	fmt.Fprintf(&user, "Question: %s", query)

	if first {
		relevant, err := a.history.SelectRelevant(ctx, query)
		if err != nil {
			log.Warn().Err(err).Msg("relevance selection failed, continuing without prior turns")
		}
		if len(relevant) > 0 {
			user.WriteString("\n\nRelevant prior conversation:")
			for _, msg := range relevant {
				fmt.Fprintf(&user, "\n- %s: %s", msg.Query, msg.Summary)
			}
		}
	} else {
		user.WriteString("\n\nData gathered so far:")
		for _, summary := range pad.ToolSummaries() {
			fmt.Fprintf(&user, "\n- %s", summary)
		}
		user.WriteString("\n\nCall more tools if data is still missing; otherwise give the final answer.")
	}

	return []contractx.Message{
		contractx.SystemMessage(a.prompts.Agent),
		contractx.UserMessage(user.String()),
	}
}

func answerInput(query string, contexts []scratchx.ToolContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nTool results:", query)
	for _, c := range contexts {
		fmt.Fprintf(&b, "\n\n### %s\n%s", c.Tool, c.Result)
	}
	return b.String()
}

const summaryLimit = 160

func summarizeResult(tool, result string) string {
	line := result
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	if len(line) > summaryLimit {
		line = line[:summaryLimit] + "..."
	}
	return fmt.Sprintf("%s: %s", tool, line)
}

// emit delivers one event unless the run was cancelled; cancellation
// stops the stream immediately rather than waiting on a slow consumer.
func emit(ctx context.Context, r *Run, evt contractx.AgentEvent) bool {
	select {
	case r.events <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

func runErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

type noopHistory struct{}

func (noopHistory) AddMessage(context.Context, string, string) (contractx.ConversationMessage, error) {
	return contractx.ConversationMessage{}, nil
}

func (noopHistory) SelectRelevant(context.Context, string) ([]contractx.ConversationMessage, error) {
	return nil, nil
}
