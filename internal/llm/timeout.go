package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voice-relay/internal/domain"
)

// DefaultTimeout bounds a completion when no timeout is configured.
const DefaultTimeout = 7 * time.Second

type timeoutCompleter struct {
	next    Completer
	timeout time.Duration
}

// WithTimeout wraps c so every call is aborted after d. A call that hits the
// deadline fails with an error wrapping domain.ErrCompletionTimeout and never
// returns a reply.
func WithTimeout(c Completer, d time.Duration) Completer {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &timeoutCompleter{next: c, timeout: d}
}

func (t *timeoutCompleter) Complete(ctx context.Context, system string, turns []domain.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	text, err := t.next.Complete(ctx, system, turns)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("llm: no reply within %s: %w", t.timeout, domain.ErrCompletionTimeout)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}
