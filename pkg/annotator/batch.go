// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package annotator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/ontology-annotator/pkg/logger"
)

// AnnotateMany implements Annotator. Queries run concurrently up to the
// configured batch concurrency. A failing query never affects its siblings.
func (p *Pipeline) AnnotateMany(ctx context.Context, queries []Query) []Result {
	results := make([]Result, len(queries))

	var g errgroup.Group
	g.SetLimit(p.batchConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = failedResult(q, err)
				return nil
			}
			res, err := p.Annotate(ctx, q)
			if err != nil {
				logger.Debugf("annotation of item %d failed: %v", i, err)
				results[i] = failedResult(q, err)
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()

	return results
}
