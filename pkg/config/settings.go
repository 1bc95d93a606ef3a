// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config holds the validated process settings for ontology-annotator.
//
// Settings are read once at startup from the environment (optionally seeded
// from .env files) and an optional YAML file, then handed to the clients and
// the annotation pipeline as an explicit dependency. Nothing downstream reads
// the environment.
package config

import (
	"slices"
	"time"

	"github.com/stacklok/ontology-annotator/pkg/domain"
)

// Transport names accepted by the MCP server.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
)

// Config is the full set of process settings. Treat it as read-only once
// loaded; accessor methods hand out copies of the mutable parts.
type Config struct {
	OLS        OLSConfig
	BioPortal  BioPortalConfig
	Anthropic  AnthropicConfig
	Retry      RetryConfig
	Annotation AnnotationConfig
	Network    NetworkConfig
	Server     ServerConfig
}

// OLSConfig configures the primary ontology lookup service.
type OLSConfig struct {
	APIURL     string
	Timeout    time.Duration
	MaxResults int
	RateLimit  float64
	RateBurst  int
}

// BioPortalConfig configures the fallback ontology catalog.
type BioPortalConfig struct {
	APIKey     string
	APIURL     string
	Timeout    time.Duration
	MaxResults int
	RateLimit  float64
	RateBurst  int
}

// AnthropicConfig configures the language model used for entity extraction.
type AnthropicConfig struct {
	APIKey    string
	APIURL    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// RetryConfig bounds retries of outbound calls.
// MaxAttempts counts the initial attempt.
type RetryConfig struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration
}

// AnnotationConfig configures the pipeline.
type AnnotationConfig struct {
	BatchConcurrency int
	RequestTimeout   time.Duration
	DomainOntologies map[domain.Domain][]string
}

// NetworkConfig configures the outbound HTTP clients.
type NetworkConfig struct {
	CACertPath        string
	AllowPrivateIPs   bool
	AllowInsecureHTTP bool
}

// ServerConfig configures the MCP transport.
type ServerConfig struct {
	Transport string
	Host      string
	Port      string
}

// OntologiesFor returns the default ontology namespaces for d.
// Unspecified yields nil, meaning no restriction.
func (c *Config) OntologiesFor(d domain.Domain) []string {
	if d == domain.Unspecified {
		return nil
	}
	if configured, ok := c.Annotation.DomainOntologies[d]; ok && len(configured) > 0 {
		return slices.Clone(configured)
	}
	return domain.BuiltinOntologies(d)
}

// BioPortalEnabled reports whether a BioPortal credential is configured.
func (c *Config) BioPortalEnabled() bool {
	return c.BioPortal.APIKey != ""
}

// ExtractionEnabled reports whether an Anthropic credential is configured.
func (c *Config) ExtractionEnabled() bool {
	return c.Anthropic.APIKey != ""
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	ontologies := make(map[domain.Domain][]string, len(domain.All()))
	for _, d := range domain.All() {
		ontologies[d] = domain.BuiltinOntologies(d)
	}
	return &Config{
		OLS: OLSConfig{
			APIURL:     defaultOLSURL,
			Timeout:    30 * time.Second,
			MaxResults: 10,
			RateLimit:  10,
			RateBurst:  20,
		},
		BioPortal: BioPortalConfig{
			APIURL:     defaultBioPortalURL,
			Timeout:    30 * time.Second,
			MaxResults: 10,
			RateLimit:  5,
			RateBurst:  10,
		},
		Anthropic: AnthropicConfig{
			APIURL:    defaultAnthropicURL,
			Model:     defaultAnthropicModel,
			MaxTokens: 2048,
			Timeout:   60 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			MinWait:     time.Second,
			MaxWait:     10 * time.Second,
		},
		Annotation: AnnotationConfig{
			BatchConcurrency: 8,
			RequestTimeout:   120 * time.Second,
			DomainOntologies: ontologies,
		},
		Server: ServerConfig{
			Transport: TransportStdio,
			Host:      "localhost",
			Port:      DefaultMCPPort,
		},
	}
}
