// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the settings for values the clients cannot work with.
func (c *Config) Validate() error {
	var errs []error

	for name, raw := range map[string]string{
		"OLS_API_URL":       c.OLS.APIURL,
		"BIOPORTAL_API_URL": c.BioPortal.APIURL,
		"ANTHROPIC_API_URL": c.Anthropic.APIURL,
	} {
		if err := validateURL(raw, c.Network.AllowInsecureHTTP); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	positive := []struct {
		name  string
		value int64
	}{
		{"OLS_TIMEOUT", int64(c.OLS.Timeout)},
		{"OLS_MAX_RESULTS", int64(c.OLS.MaxResults)},
		{"BIOPORTAL_TIMEOUT", int64(c.BioPortal.Timeout)},
		{"BIOPORTAL_MAX_RESULTS", int64(c.BioPortal.MaxResults)},
		{"ANTHROPIC_MAX_TOKENS", int64(c.Anthropic.MaxTokens)},
		{"ANTHROPIC_TIMEOUT", int64(c.Anthropic.Timeout)},
		{"MAX_RETRIES", int64(c.Retry.MaxAttempts)},
		{"BATCH_CONCURRENCY", int64(c.Annotation.BatchConcurrency)},
		{"REQUEST_TIMEOUT", int64(c.Annotation.RequestTimeout)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", p.name))
		}
	}

	if c.OLS.RateLimit < 0 || c.BioPortal.RateLimit < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	if c.Retry.MinWait < 0 || c.Retry.MaxWait < 0 {
		errs = append(errs, errors.New("retry waits must not be negative"))
	}
	if c.Retry.MinWait > c.Retry.MaxWait {
		errs = append(errs, fmt.Errorf("RETRY_MIN_WAIT (%s) must not exceed RETRY_MAX_WAIT (%s)", c.Retry.MinWait, c.Retry.MaxWait))
	}

	if c.Network.CACertPath != "" {
		if err := validateCACert(c.Network.CACertPath); err != nil {
			errs = append(errs, fmt.Errorf("CA_CERT_PATH: %w", err))
		}
	}

	switch c.Server.Transport {
	case TransportStdio, TransportStreamableHTTP:
	default:
		errs = append(errs, fmt.Errorf("MCP_TRANSPORT %q is not one of %s, %s",
			c.Server.Transport, TransportStdio, TransportStreamableHTTP))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// validateURL requires an absolute https URL, or http when allowInsecure is set.
func validateURL(raw string, allowInsecure bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL %q must include scheme and host", raw)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !allowInsecure {
			return fmt.Errorf("URL %q is not HTTPS; set ALLOW_INSECURE_HTTP=true to allow plain HTTP", u.Redacted())
		}
	default:
		return fmt.Errorf("URL %q has unsupported scheme %q", u.Redacted(), u.Scheme)
	}
	return nil
}
