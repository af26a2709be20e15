package embedder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphweave/graphweave/internal/types"
)

// ResilientEmbedder decorates another Embedder with per-call timeouts,
// retries with capped exponential backoff, and a sliding-window circuit
// breaker. Single embeds surface their final error; batch embeds drop
// failed items (nil at their index) so one poisoned text cannot sink a
// whole indexing run.
type ResilientEmbedder struct {
	inner   Embedder
	cfg     ResilienceConfig
	breaker *circuitBreaker
	logger  *slog.Logger

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(context.Context, time.Duration) error
}

// NewResilientEmbedder wraps inner with the given resilience settings.
func NewResilientEmbedder(inner Embedder, cfg ResilienceConfig) *ResilientEmbedder {
	cfg.ApplyDefaults()
	return &ResilientEmbedder{
		inner:   inner,
		cfg:     cfg,
		breaker: newCircuitBreaker(cfg.WindowSize, cfg.FailureThreshold, cfg.Cooldown),
		logger:  slog.Default().With("component", "embedder.resilient", "model", inner.Model()),
		sleep:   sleepCtx,
	}
}

func (e *ResilientEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var vec []float64
	err := e.withRetries(ctx, func(callCtx context.Context) error {
		var callErr error
		vec, callErr = e.inner.Embed(callCtx, text)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch embeds each text independently with bounded concurrency.
// Failed items are logged and returned as nil; the error is non-nil only
// when the circuit is open or the context is done before work starts.
func (e *ResilientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if !e.breaker.allow() {
		return nil, types.NewError(types.EMBEDDING_CIRCUIT_OPEN,
			"embedding circuit is open").WithRetryable(true)
	}
	if err := ctx.Err(); err != nil {
		return nil, types.WrapError(types.EMBEDDING_FAILED, "context done before batch", err)
	}

	vectors := make([][]float64, len(texts))
	var (
		mu      sync.Mutex
		dropped int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.BatchConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gctx, text)
			if err != nil {
				e.logger.Warn("dropping batch item", "index", i, "error", err)
				mu.Lock()
				dropped++
				mu.Unlock()
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	g.Wait()

	if dropped > 0 {
		e.logger.Warn("batch completed with drops", "total", len(texts), "dropped", dropped)
	}
	return vectors, nil
}

// withRetries runs call up to 1+MaxRetries times with capped exponential
// backoff, consulting the circuit breaker before each attempt.
func (e *ResilientEmbedder) withRetries(ctx context.Context, call func(context.Context) error) error {
	backoff := e.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if !e.breaker.allow() {
			return types.NewError(types.EMBEDDING_CIRCUIT_OPEN,
				"embedding circuit is open").WithRetryable(true)
		}

		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		err := call(callCtx)
		cancel()

		e.breaker.record(err == nil)
		if err == nil {
			return nil
		}
		lastErr = err

		if !types.IsRetryable(err) || attempt == e.cfg.MaxRetries {
			break
		}
		e.logger.Debug("retrying embed", "attempt", attempt+1, "backoff", backoff, "error", err)
		if err := e.sleep(ctx, backoff); err != nil {
			return types.WrapError(types.EMBEDDING_FAILED, "retry interrupted", err)
		}
		backoff *= 2
		if backoff > e.cfg.MaxBackoff {
			backoff = e.cfg.MaxBackoff
		}
	}
	return lastErr
}

func (e *ResilientEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

func (e *ResilientEmbedder) Model() string {
	return e.inner.Model()
}

func (e *ResilientEmbedder) Health(ctx context.Context) types.HealthStatus {
	if !e.breaker.allow() {
		return types.Unhealthy("embedding circuit is open")
	}
	return e.inner.Health(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// circuitBreaker tracks the outcomes of the last windowSize calls and
// opens when the failure rate reaches threshold. While open, allow
// returns false until cooldown elapses; the first call after cooldown is
// the trial that decides whether the circuit closes again.
type circuitBreaker struct {
	mu        sync.Mutex
	outcomes  []bool
	next      int
	filled    int
	threshold float64
	cooldown  time.Duration
	openedAt  time.Time
	open      bool
	now       func() time.Time
}

func newCircuitBreaker(windowSize int, threshold float64, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		outcomes:  make([]bool, windowSize),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		// Half-open: let a trial call through with a cleared window so a
		// single success can close the circuit.
		b.open = false
		b.filled = 0
		b.next = 0
		return true
	}
	return false
}

func (b *circuitBreaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.outcomes[b.next] = success
	b.next = (b.next + 1) % len(b.outcomes)
	if b.filled < len(b.outcomes) {
		b.filled++
	}
	if b.filled < len(b.outcomes) {
		return
	}

	failures := 0
	for _, ok := range b.outcomes {
		if !ok {
			failures++
		}
	}
	if float64(failures)/float64(b.filled) >= b.threshold {
		b.open = true
		b.openedAt = b.now()
	}
}
