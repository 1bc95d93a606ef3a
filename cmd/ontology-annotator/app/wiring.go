// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"time"

	"github.com/stacklok/ontology-annotator/pkg/annotator"
	"github.com/stacklok/ontology-annotator/pkg/config"
	"github.com/stacklok/ontology-annotator/pkg/extract"
	"github.com/stacklok/ontology-annotator/pkg/llm"
	"github.com/stacklok/ontology-annotator/pkg/logger"
	"github.com/stacklok/ontology-annotator/pkg/lookup"
	"github.com/stacklok/ontology-annotator/pkg/lookup/bioportal"
	"github.com/stacklok/ontology-annotator/pkg/lookup/ols"
	"github.com/stacklok/ontology-annotator/pkg/networking"
	"github.com/stacklok/ontology-annotator/pkg/retry"
	"github.com/stacklok/ontology-annotator/pkg/versions"
)

// components are the process-wide collaborators shared by every request.
type components struct {
	pipeline *annotator.Pipeline
	// extractor is nil when no Anthropic credential is configured.
	extractor extract.Extractor
}

func buildComponents(cfg *config.Config) (*components, error) {
	policy := retry.FromConfig(cfg.Retry)

	olsHTTP, err := newHTTPClient(cfg.Network, cfg.OLS.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create OLS HTTP client: %w", err)
	}
	primary := lookup.WithRetry(ols.NewClient(cfg.OLS, olsHTTP), policy, ols.ServiceName)

	opts := []annotator.Option{annotator.WithBatchConcurrency(cfg.Annotation.BatchConcurrency)}
	if cfg.BioPortalEnabled() {
		bpHTTP, err := newHTTPClient(cfg.Network, cfg.BioPortal.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create BioPortal HTTP client: %w", err)
		}
		bp, err := bioportal.NewClient(cfg.BioPortal, bpHTTP)
		if err != nil {
			return nil, err
		}
		opts = append(opts, annotator.WithFallback(lookup.WithRetry(bp, policy, bioportal.ServiceName)))
	} else {
		logger.Info("BIOPORTAL_API_KEY not set, BioPortal fallback disabled")
	}

	c := &components{pipeline: annotator.NewPipeline(primary, cfg, opts...)}

	if cfg.ExtractionEnabled() {
		llmHTTP, err := newHTTPClient(cfg.Network, cfg.Anthropic.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic HTTP client: %w", err)
		}
		completer, err := llm.NewAnthropic(cfg.Anthropic, llmHTTP, policy)
		if err != nil {
			return nil, err
		}
		c.extractor = extract.NewLLMExtractor(completer)
	} else {
		logger.Info("ANTHROPIC_API_KEY not set, entity extraction disabled")
	}

	return c, nil
}

func newHTTPClient(cfg config.NetworkConfig, timeout time.Duration) (networking.HTTPClient, error) {
	return networking.NewHttpClientBuilder().
		WithTimeout(timeout).
		WithCABundle(cfg.CACertPath).
		WithPrivateIPs(cfg.AllowPrivateIPs).
		WithInsecureHTTP(cfg.AllowInsecureHTTP).
		WithUserAgent("ontology-annotator/" + versions.GetVersionInfo().Version).
		Build()
}
