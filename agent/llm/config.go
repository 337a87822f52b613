package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	contractx "github.com/scriptautomation123/dexter/agent/contract"
)

// Provider selects the reasoning-service backend. The value is resolved
// once, at construction, into a concrete gateway implementation; core
// logic never inspects model-name strings.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderOpenRouter Provider = "openrouter"
)

type Config struct {
	Provider           string        `envconfig:"PROVIDER" split_words:"true" default:"openai"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	RetryAttempts  int           `envconfig:"RETRY_ATTEMPTS" split_words:"true" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" split_words:"true" default:"500ms"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: model is required", contractx.ErrValidation)
	}
	switch Provider(strings.TrimSpace(c.Provider)) {
	case ProviderOpenAI, ProviderOpenRouter:
	default:
		return fmt.Errorf("%w: unknown provider %q", contractx.ErrValidation, c.Provider)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry attempts must be >= 1", contractx.ErrValidation)
	}
	return nil
}

// NewGateway resolves the configured provider into a gateway
// implementation, wrapped with retry.
func NewGateway(ctx context.Context, cfg Config) (contractx.Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		base contractx.Gateway
		err  error
	)
	switch Provider(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenRouter:
		base, err = newOpenRouterGateway(ctx, cfg)
	default:
		base, err = newOpenAIGateway(cfg)
	}
	if err != nil {
		return nil, err
	}

	return withRetry(base, cfg.RetryAttempts, cfg.RetryBaseDelay), nil
}
