package batch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/analysis"
)

// semanticWithRetry retries transient embedding failures with exponential
// backoff. A missing model or quota rejection is not transient.
func (s *Service) semanticWithRetry(ctx context.Context, i int, text string) (analysis.Result, error) {
	var (
		res     analysis.Result
		attempt int
	)
	op := func() error {
		attempt++
		var err error
		res, err = s.scorer.Semantic(ctx, text)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Debug("Retrying semantic scoring",
			zap.Int("record", i),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, s.retryPolicy(ctx), notify); err != nil {
		return analysis.Result{}, err
	}
	return res, nil
}

func (s *Service) retryPolicy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.opts.Retry.InitialBackoff
	exp.MaxInterval = s.opts.Retry.MaxBackoff
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0
	retries := uint64(max(s.opts.Retry.MaxAttempts-1, 0))
	return backoff.WithContext(backoff.WithMaxRetries(exp, retries), ctx)
}

func retryable(err error) bool {
	if errors.Is(err, domain.ErrModelUnavailable) || errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		return false
	}
	return errors.Is(err, domain.ErrEmbeddingUnavailable)
}
