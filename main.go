package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	contractx "github.com/scriptautomation123/dexter/agent/contract"
	historyx "github.com/scriptautomation123/dexter/agent/history"
	"github.com/scriptautomation123/dexter/agent/llm"
	"github.com/scriptautomation123/dexter/agent/orchestrator"
	promptx "github.com/scriptautomation123/dexter/agent/prompt"
	routerx "github.com/scriptautomation123/dexter/agent/router"
	toolx "github.com/scriptautomation123/dexter/agent/tool"
	configx "github.com/scriptautomation123/dexter/pkg/config"
	_ "github.com/scriptautomation123/dexter/pkg/logger/autoload"
)

type AppConfig struct {
	ScratchpadDir string `split_words:"true" default:".dexter/runs"`
	MaxIterations int    `split_words:"true" default:"10"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("AGENT")
	llmCfg := configx.MustNew[llm.Config]("LLM")

	gateway, err := llm.NewGateway(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("gateway initialization failed")
	}

	prompts := promptx.LoadSet()

	hist, err := historyx.New(gateway, historyx.Prompts{
		Summary:   prompts.Summary,
		Relevance: prompts.Relevance,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("history initialization failed")
	}

	search, err := routerx.New(gateway, []contractx.Tool{toolx.NewMath()}, prompts.Router)
	if err != nil {
		log.Fatal().Err(err).Msg("router initialization failed")
	}

	agent, err := orchestrator.New(
		gateway,
		[]contractx.Tool{search},
		hist,
		orchestrator.Prompts{Agent: prompts.Agent, Answer: prompts.Answer},
		orchestrator.Config{
			MaxIterations: appCfg.MaxIterations,
			ScratchpadDir: appCfg.ScratchpadDir,
		},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("agent initialization failed")
	}

	repl(ctx, agent)
}

func repl(ctx context.Context, agent *orchestrator.Agent) {
	fmt.Println("dexter ready. Ask a question, or press Ctrl+C to quit.")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}

		run := agent.Run(ctx, query)
		render(run)

		if ctx.Err() != nil {
			return
		}
	}
}

func render(run *orchestrator.Run) {
	answering := false
	for evt := range run.Events() {
		switch evt.Type {
		case contractx.EventThinking:
			fmt.Printf("  [thinking] %s\n", evt.Text)
		case contractx.EventToolStart:
			fmt.Printf("  [tool] %s ...\n", evt.Tool)
		case contractx.EventToolError:
			fmt.Printf("  [tool] %s failed: %s\n", evt.Tool, evt.Text)
		case contractx.EventAnswerStart:
			fmt.Print("dexter> ")
			answering = true
		case contractx.EventAnswerChunk:
			fmt.Print(evt.Text)
		case contractx.EventDone:
			if answering {
				fmt.Println()
			}
		}
	}

	if err := run.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
	}
}
