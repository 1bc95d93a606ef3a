// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package llm is a minimal client for the Anthropic Messages API, used for
// single-turn text completions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stacklok/ontology-annotator/pkg/config"
	oaerrors "github.com/stacklok/ontology-annotator/pkg/errors"
	"github.com/stacklok/ontology-annotator/pkg/metrics"
	"github.com/stacklok/ontology-annotator/pkg/networking"
	"github.com/stacklok/ontology-annotator/pkg/retry"
)

const (
	// ServiceName identifies the Anthropic API in logs and metrics.
	ServiceName = "anthropic"

	apiVersion = "2023-06-01"
)

// Anthropic sends non-streaming requests to the Messages API.
// It is safe for concurrent use.
type Anthropic struct {
	httpClient networking.HTTPClient
	endpoint   string
	apiKey     string
	model      string
	maxTokens  int
	policy     retry.Policy
}

// NewAnthropic returns a client, or a configuration_missing error when no
// API key is set.
func NewAnthropic(cfg config.AnthropicConfig, httpClient networking.HTTPClient, policy retry.Policy) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, oaerrors.NewConfigurationMissingError("ANTHROPIC_API_KEY is not set; entity extraction is unavailable", nil)
	}
	return &Anthropic{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(cfg.APIURL, "/") + "/v1/messages",
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		policy:     policy,
	}, nil
}

// Model returns the configured model name.
func (a *Anthropic) Model() string {
	return a.model
}

// Complete sends prompt as a single user message and returns the
// concatenated text blocks of the reply. Transient failures are retried.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	wireRequest := messagesRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: prompt}},
		}},
	}

	return retry.Do(ctx, a.policy, ServiceName, func(ctx context.Context) (string, error) {
		result, err := networking.FetchJSON[messagesResponse](ctx, a.httpClient, a.endpoint,
			networking.WithMethod(http.MethodPost),
			networking.WithHeader("x-api-key", a.apiKey),
			networking.WithHeader("anthropic-version", apiVersion),
			networking.WithJSONBody(wireRequest),
		)
		if err != nil {
			return "", networking.ClassifyError(ctx, ServiceName, withProviderMessage(err))
		}

		resp := result.Data
		metrics.RecordTokens(a.model, "input", resp.Usage.InputTokens)
		metrics.RecordTokens(a.model, "output", resp.Usage.OutputTokens)

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		return text.String(), nil
	})
}

// withProviderMessage prefixes err with the message from an Anthropic error
// body ({"error":{"type":"...","message":"..."}}) when there is one.
func withProviderMessage(err error) error {
	var httpErr *networking.HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}
	msg := gjson.Get(httpErr.Body, "error.message").String()
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s (%s): %w", msg, gjson.Get(httpErr.Body, "error.type").String(), err)
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
