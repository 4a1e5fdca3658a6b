package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"go-ingest-pipeline/internal/model"
)

// fetchWithRetry runs one source fetch under the retry policy.
// Transient source errors are retried with exponential backoff up to
// the attempt ceiling; permanent ones fail immediately.
func fetchWithRetry(ctx context.Context, policy model.RetryPolicy, fetcher Fetcher, src model.SourceSpec) ([]model.GenericRecord, error) {
	policy = policy.Normalized()

	var records []model.GenericRecord
	operation := func() error {
		recs, err := fetcher.Fetch(ctx, src)
		if err != nil {
			var srcErr *model.SourceError
			if errors.As(err, &srcErr) && !srcErr.Transient {
				return backoff.Permanent(err)
			}
			return err
		}
		records = recs
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.BaseDelay
	expo.Multiplier = policy.BackoffMultiplier
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	b := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(policy.MaxAttempts-1)), ctx)
	err := backoff.RetryNotify(operation, b, func(err error, next time.Duration) {
		log.Printf("🔄 source %s failed, retrying in %v: %v", src.URL, next, err)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
