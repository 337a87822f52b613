package history

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/scriptautomation123/dexter/agent/contract"
)

const summaryFallbackLimit = 200

// Prompts are the system prompts the manager's two reasoning calls use.
type Prompts struct {
	Summary   string
	Relevance string
}

// Manager holds the query/answer turns of one session, summarizes each,
// and selects which prior turns are relevant to a new query. Relevance
// decisions are memoized per query for the life of the process. It
// outlives individual runs; a mutex serializes writes against reads
// (sequential runs are the expected shape, so simple exclusion suffices).
type Manager struct {
	gateway contractx.Gateway
	prompts Prompts

	mu        sync.Mutex
	messages  []contractx.ConversationMessage
	relevance map[uint64][]int
}

func New(gateway contractx.Gateway, prompts Prompts) (*Manager, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if strings.TrimSpace(prompts.Summary) == "" || strings.TrimSpace(prompts.Relevance) == "" {
		return nil, fmt.Errorf("%w: history prompts", contractx.ErrPromptMissing)
	}
	return &Manager{
		gateway:   gateway,
		prompts:   prompts,
		relevance: make(map[uint64][]int),
	}, nil
}

// Len returns the number of recorded turns.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Messages returns a copy of every recorded turn in append order.
func (m *Manager) Messages() []contractx.ConversationMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]contractx.ConversationMessage(nil), m.messages...)
}

// AddMessage records a completed turn. The summary comes from one
// lightweight reasoning call; if that call fails the turn is still kept,
// with a truncated answer standing in for the summary — a summarizer
// hiccup must not lose session memory.
func (m *Manager) AddMessage(ctx context.Context, query, answer string) (contractx.ConversationMessage, error) {
	if strings.TrimSpace(query) == "" {
		return contractx.ConversationMessage{}, fmt.Errorf("%w: query is empty", contractx.ErrValidation)
	}

	summary := m.summarize(ctx, query, answer)

	m.mu.Lock()
	defer m.mu.Unlock()

	msg := contractx.ConversationMessage{
		ID:      len(m.messages) + 1,
		Query:   query,
		Answer:  answer,
		Summary: summary,
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *Manager) summarize(ctx context.Context, query, answer string) string {
	resp, err := m.gateway.Invoke(ctx, []contractx.Message{
		contractx.SystemMessage(m.prompts.Summary),
		contractx.UserMessage(fmt.Sprintf("Question: %s\n\nAnswer: %s", query, answer)),
	}, nil)
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		log.Warn().Err(err).Msg("turn summary failed, falling back to truncated answer")
		return truncate(answer, summaryFallbackLimit)
	}
	return strings.TrimSpace(resp.Text)
}

// SelectRelevant returns the prior turns relevant to query, in id order.
// The decision for an identical query on unchanged history is served from
// cache; only a miss costs a reasoning-service round trip.
func (m *Manager) SelectRelevant(ctx context.Context, query string) ([]contractx.ConversationMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.messages) == 0 {
		return nil, nil
	}

	key := queryKey(query)
	if ids, ok := m.relevance[key]; ok {
		return m.byIDs(ids), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New query: %s\n\nPrior turns:\n", query)
	for _, msg := range m.messages {
		fmt.Fprintf(&b, "id=%d query=%q summary=%q\n", msg.ID, msg.Query, msg.Summary)
	}

	resp, err := m.gateway.Invoke(ctx, []contractx.Message{
		contractx.SystemMessage(m.prompts.Relevance),
		contractx.UserMessage(b.String()),
	}, nil)
	if err != nil {
		return nil, err
	}

	ids := parseIDList(resp.Text)
	m.relevance[key] = ids
	return m.byIDs(ids), nil
}

func (m *Manager) byIDs(ids []int) []contractx.ConversationMessage {
	var out []contractx.ConversationMessage
	for _, msg := range m.messages {
		for _, id := range ids {
			if msg.ID == id {
				out = append(out, msg)
				break
			}
		}
	}
	return out
}

func queryKey(query string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(query))
	return h.Sum64()
}

var idListPattern = regexp.MustCompile(`\d+`)

// parseIDList extracts message ids from the model's reply. Strict JSON is
// preferred; surrounding prose or a bare comma list is tolerated because
// models do not reliably emit the array alone.
func parseIDList(text string) []int {
	candidate := text
	if start := strings.Index(text, "["); start >= 0 {
		if end := strings.Index(text[start:], "]"); end > 0 {
			candidate = text[start : start+end+1]
		}
	}

	seen := make(map[int]struct{})
	var ids []int
	for _, raw := range idListPattern.FindAllString(candidate, -1) {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
