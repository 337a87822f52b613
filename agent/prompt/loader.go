package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/agent.txt
	agentRaw string

	//go:embed template/answer.txt
	answerRaw string

	//go:embed template/router.txt
	routerRaw string

	//go:embed template/relevance.txt
	relevanceRaw string

	//go:embed template/summary.txt
	summaryRaw string
)

// Set holds the loaded system prompts.
type Set struct {
	Agent     string
	Answer    string
	Router    string
	Relevance string
	Summary   string
}

// LoadSet returns the embedded prompts, trimmed. Safe to call
// concurrently; the embed is compile-time and trimming is cheap.
func LoadSet() Set {
	return Set{
		Agent:     strings.TrimSpace(agentRaw),
		Answer:    strings.TrimSpace(answerRaw),
		Router:    strings.TrimSpace(routerRaw),
		Relevance: strings.TrimSpace(relevanceRaw),
		Summary:   strings.TrimSpace(summaryRaw),
	}
}
