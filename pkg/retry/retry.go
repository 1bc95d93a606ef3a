// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package retry runs outbound calls with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/ontology-annotator/pkg/config"
	oaerrors "github.com/stacklok/ontology-annotator/pkg/errors"
	"github.com/stacklok/ontology-annotator/pkg/logger"
	"github.com/stacklok/ontology-annotator/pkg/metrics"
)

// Policy bounds the retries of a single logical call.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts uint
	// InitialInterval is the wait before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the wait between attempts.
	MaxInterval time.Duration
}

// FromConfig builds a Policy from the retry settings.
func FromConfig(c config.RetryConfig) Policy {
	attempts := uint(1)
	if c.MaxAttempts > 1 {
		attempts = uint(c.MaxAttempts) // #nosec G115 -- validated positive
	}
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: c.MinWait,
		MaxInterval:     c.MaxWait,
	}
}

// Do calls op until it succeeds, fails with an error that is not a transient
// upstream error, the attempts are used up, or ctx is done. The last error
// is returned unchanged.
func Do[T any](ctx context.Context, p Policy, service string, op func(context.Context) (T, error)) (T, error) {
	expBackoff := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		expBackoff.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		expBackoff.MaxInterval = p.MaxInterval
	}
	expBackoff.Reset()

	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		result, err := op(ctx)
		if err == nil {
			metrics.RecordUpstreamRequest(service, metrics.OutcomeSuccess)
			return result, nil
		}
		metrics.RecordUpstreamRequest(service, metrics.OutcomeError)
		if ctx.Err() != nil || !oaerrors.IsTransientUpstream(err) {
			return result, backoff.Permanent(err)
		}
		logger.Debugf("%s call failed (attempt %d/%d): %v", service, attempt, attempts, err)
		return result, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(attempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, d time.Duration) {
			metrics.RecordRetry(service)
			logger.Debugf("Retrying %s after %v", service, d)
		}),
	)
}
