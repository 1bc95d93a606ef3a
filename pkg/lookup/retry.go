// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package lookup

import (
	"context"

	"github.com/stacklok/ontology-annotator/pkg/retry"
)

// WithRetry wraps s so each Search is retried on transient upstream errors
// according to policy. service names the upstream in logs and metrics.
func WithRetry(s Searcher, policy retry.Policy, service string) Searcher {
	return SearcherFunc(func(ctx context.Context, q Query) ([]Candidate, error) {
		return retry.Do(ctx, policy, service, func(ctx context.Context) ([]Candidate, error) {
			return s.Search(ctx, q)
		})
	})
}
