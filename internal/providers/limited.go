package providers

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"filechat/internal/core"
	"filechat/internal/observability"
)

const (
	modeChat  = "chat"
	modeBatch = "batch"
)

// LimitedConfig bounds the outbound calls of a wrapped gateway.
type LimitedConfig struct {
	// Name identifies the provider in errors returned to callers.
	Name string
	// MaxConcurrency caps concurrent calls. Zero or less means unlimited.
	MaxConcurrency int
	// Timeout bounds each call, including the wait for a slot. Zero means none.
	Timeout time.Duration
}

// Limited wraps a gateway with a concurrency cap, an optional timeout and metrics.
type Limited struct {
	inner   core.Gateway
	name    string
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewLimited wraps inner according to cfg.
func NewLimited(inner core.Gateway, cfg LimitedConfig) *Limited {
	l := &Limited{inner: inner, name: cfg.Name, timeout: cfg.Timeout}
	if cfg.MaxConcurrency > 0 {
		l.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrency))
	}
	return l
}

// SendChatTurn forwards a chat turn once a slot is available.
func (l *Limited) SendChatTurn(ctx context.Context, prompt *core.ChatPrompt, gen core.GenerationConfig) (string, error) {
	return l.call(ctx, modeChat, func(ctx context.Context) (string, error) {
		return l.inner.SendChatTurn(ctx, prompt, gen)
	})
}

// GenerateOnce forwards a single-shot call once a slot is available.
func (l *Limited) GenerateOnce(ctx context.Context, parts []core.Segment) (string, error) {
	return l.call(ctx, modeBatch, func(ctx context.Context) (string, error) {
		return l.inner.GenerateOnce(ctx, parts)
	})
}

// Close closes the wrapped gateway when it holds resources.
func (l *Limited) Close() error {
	if c, ok := l.inner.(core.Closer); ok {
		return c.Close()
	}
	return nil
}

func (l *Limited) call(ctx context.Context, mode string, fn func(context.Context) (string, error)) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if l.sem != nil {
		doneWaiting := observability.TrackWaiting()
		err := l.sem.Acquire(ctx, 1)
		doneWaiting()
		if err != nil {
			observability.ObserveProviderCall(mode, "canceled", 0)
			return "", core.NewProviderError(l.name, "gave up waiting for a provider slot", err)
		}
		defer l.sem.Release(1)
	}

	done := observability.TrackInFlight()
	start := time.Now()
	text, err := fn(ctx)
	done()

	observability.ObserveProviderCall(mode, outcome(err), time.Since(start))
	if err != nil {
		return "", l.wrap(err)
	}
	return text, nil
}

func (l *Limited) wrap(err error) error {
	var e *core.Error
	if errors.As(err, &e) {
		return err
	}
	return core.NewProviderError(l.name, "provider call failed", err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
