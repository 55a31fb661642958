package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/Lllllllleong/travelcontentflow/internal/gcp"
)

// ImagePredictor is the slice of the Imagen client the generator needs.
type ImagePredictor interface {
	Generate(ctx context.Context, prompt string) (data []byte, ext string, err error)
}

// GeneratorConfig tunes the quota negotiation with the generation service.
type GeneratorConfig struct {
	// Cooldown is the minimum spacing between generation calls, enforced even
	// after a success. This is a deliberate throttle to stay under the shared
	// sustained quota, not an error path.
	Cooldown time.Duration
	// RetryDelay is how long to wait after a 429 before the next attempt.
	RetryDelay time.Duration
	// MaxAttempts bounds the 429 retry loop. Exhaustion degrades to a
	// per-asset failure rather than hanging forever.
	MaxAttempts int
}

func (c *GeneratorConfig) applyDefaults() {
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 45 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
}

// Generator wraps an ImagePredictor with the pipeline's rate-limit policy: a
// shared token bucket whose refill interval is the post-call cooldown, plus a
// bounded retry loop for quota errors. One Generator is shared by all workers
// so the spacing holds across the whole batch.
type Generator struct {
	predictor ImagePredictor
	limiter   *rate.Limiter
	cfg       GeneratorConfig

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGenerator(predictor ImagePredictor, cfg GeneratorConfig) *Generator {
	cfg.applyDefaults()
	return &Generator{
		predictor: predictor,
		limiter:   rate.NewLimiter(rate.Every(cfg.Cooldown), 1),
		cfg:       cfg,
		sleep:     sleepCtx,
	}
}

// Generate resolves one prompt into image bytes. Quota errors are retried up
// to MaxAttempts with a fixed delay; any other failure is returned
// immediately. Every error from this method is terminal for the asset only,
// never for the run.
func (g *Generator) Generate(ctx context.Context, prompt string) ([]byte, string, error) {
	for attempt := 1; ; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}

		data, ext, err := g.predictor.Generate(ctx, prompt)
		if err == nil {
			return data, ext, nil
		}

		var genErr *gcp.GenerationError
		if !errors.As(err, &genErr) || genErr.Kind != gcp.KindQuota {
			return nil, "", err
		}
		if attempt >= g.cfg.MaxAttempts {
			slog.Warn("Generation quota retries exhausted.", "attempts", attempt)
			return nil, "", err
		}

		slog.Warn("Generation quota hit; backing off.", "attempt", attempt, "retryDelay", g.cfg.RetryDelay)
		if err := g.sleep(ctx, g.cfg.RetryDelay); err != nil {
			return nil, "", err
		}
	}
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
