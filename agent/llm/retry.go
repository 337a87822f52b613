package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/scriptautomation123/dexter/agent/contract"
)

// retryGateway retries Invoke and stream opening with exponential backoff.
// Exhausted retries surface as a single ErrGateway-wrapped error; the
// caller treats that as a run-terminating failure. Fragments of an
// already-open stream are never retried, the stream is not restartable.
type retryGateway struct {
	next      contractx.Gateway
	attempts  int
	baseDelay time.Duration
}

func withRetry(next contractx.Gateway, attempts int, baseDelay time.Duration) contractx.Gateway {
	if attempts < 1 {
		attempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &retryGateway{next: next, attempts: attempts, baseDelay: baseDelay}
}

func (g *retryGateway) Invoke(ctx context.Context, msgs []contractx.Message, tools []contractx.ToolSchema) (*contractx.GatewayResponse, error) {
	var resp *contractx.GatewayResponse
	err := g.retry(ctx, "invoke", func() error {
		var callErr error
		resp, callErr = g.next.Invoke(ctx, msgs, tools)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (g *retryGateway) Stream(ctx context.Context, msgs []contractx.Message) (contractx.StreamReader, error) {
	var sr contractx.StreamReader
	err := g.retry(ctx, "stream", func() error {
		var callErr error
		sr, callErr = g.next.Stream(ctx, msgs)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return sr, nil
}

func (g *retryGateway) retry(ctx context.Context, op string, call func() error) error {
	delay := g.baseDelay
	var lastErr error

	for attempt := 1; attempt <= g.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == g.attempts {
			break
		}

		log.Warn().Err(lastErr).Str("op", op).Int("attempt", attempt).
			Dur("backoff", delay).Msg("gateway call failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return fmt.Errorf("%w: %s failed after %d attempts: %v", contractx.ErrGateway, op, g.attempts, lastErr)
}
