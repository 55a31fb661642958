package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/travelcontentflow/internal/gcp"
)

type stubPredictor struct {
	responses []error // one per call; nil means success
	calls     int
}

func (s *stubPredictor) Generate(ctx context.Context, prompt string) ([]byte, string, error) {
	var err error
	if s.calls < len(s.responses) {
		err = s.responses[s.calls]
	}
	s.calls++
	if err != nil {
		return nil, "", err
	}
	return []byte("image-bytes"), "png", nil
}

func quotaErr() error {
	return &gcp.GenerationError{Kind: gcp.KindQuota, StatusCode: 429, Message: "quota exceeded"}
}

func newTestGenerator(predictor ImagePredictor, maxAttempts int) (*Generator, *[]time.Duration) {
	g := NewGenerator(predictor, GeneratorConfig{
		Cooldown:    time.Millisecond,
		RetryDelay:  45 * time.Second,
		MaxAttempts: maxAttempts,
	})
	var slept []time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return g, &slept
}

func TestGenerator_QuotaRetriesAreBounded(t *testing.T) {
	// Five consecutive 429s with three allowed attempts: the generator sleeps
	// between attempts 1->2 and 2->3, then gives up without a fourth call.
	predictor := &stubPredictor{responses: []error{quotaErr(), quotaErr(), quotaErr(), quotaErr(), quotaErr()}}
	g, slept := newTestGenerator(predictor, 3)

	_, _, err := g.Generate(context.Background(), "a lighthouse at dusk")

	require.Error(t, err)
	var genErr *gcp.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, gcp.KindQuota, genErr.Kind)
	assert.Equal(t, 3, predictor.calls)
	assert.Len(t, *slept, 2)
	assert.Equal(t, 45*time.Second, (*slept)[0])
}

func TestGenerator_RecoversAfterQuotaRetry(t *testing.T) {
	predictor := &stubPredictor{responses: []error{quotaErr(), nil}}
	g, slept := newTestGenerator(predictor, 3)

	data, ext, err := g.Generate(context.Background(), "a harbour at dawn")

	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
	assert.Equal(t, "png", ext)
	assert.Equal(t, 2, predictor.calls)
	assert.Len(t, *slept, 1)
}

func TestGenerator_TerminalErrorIsNotRetried(t *testing.T) {
	blocked := &gcp.GenerationError{Kind: gcp.KindBlocked, Message: "prediction withheld by the service"}
	predictor := &stubPredictor{responses: []error{blocked}}
	g, slept := newTestGenerator(predictor, 3)

	_, _, err := g.Generate(context.Background(), "something the filter dislikes")

	require.Error(t, err)
	var genErr *gcp.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, gcp.KindBlocked, genErr.Kind)
	assert.Equal(t, 1, predictor.calls)
	assert.Empty(t, *slept)
}

func TestGenerator_UntypedErrorIsNotRetried(t *testing.T) {
	predictor := &stubPredictor{responses: []error{errors.New("connection reset")}}
	g, slept := newTestGenerator(predictor, 3)

	_, _, err := g.Generate(context.Background(), "prompt")

	require.Error(t, err)
	assert.Equal(t, 1, predictor.calls)
	assert.Empty(t, *slept)
}

func TestGenerator_CancelledContextStopsRetrying(t *testing.T) {
	predictor := &stubPredictor{responses: []error{quotaErr(), quotaErr()}}
	g, _ := newTestGenerator(predictor, 3)
	ctx, cancel := context.WithCancel(context.Background())
	g.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, _, err := g.Generate(ctx, "prompt")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, predictor.calls)
}
