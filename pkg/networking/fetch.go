// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultMaxResponseSize is the default maximum response body size (4MB).
	DefaultMaxResponseSize = 4 * 1024 * 1024

	// DefaultErrorPreviewSize is the maximum size of error body preview in HTTPError.
	DefaultErrorPreviewSize = 1024

	// ContentTypeJSON is the JSON content type.
	ContentTypeJSON = "application/json"
)

var (
	// ErrUnexpectedContentType is returned when a successful response is not JSON.
	ErrUnexpectedContentType = errors.New("unexpected content type")

	// ErrMalformedResponse is returned when a response body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response body")
)

// FetchResult contains the result of a successful fetch operation.
type FetchResult[T any] struct {
	// Data is the response body, decoded when fetched with FetchJSON.
	Data T

	// StatusCode is the HTTP status code of the response.
	StatusCode int

	// Headers are the response headers.
	Headers http.Header
}

// FetchOption configures a fetch request.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	method                    string
	headers                   http.Header
	query                     url.Values
	body                      []byte
	maxResponseSize           int64
	skipContentTypeValidation bool
	err                       error
}

func newFetchOptions() *fetchOptions {
	return &fetchOptions{
		method:          http.MethodGet,
		headers:         make(http.Header),
		query:           make(url.Values),
		maxResponseSize: DefaultMaxResponseSize,
	}
}

// WithMethod sets the HTTP method for the request.
func WithMethod(method string) FetchOption {
	return func(opts *fetchOptions) {
		opts.method = method
	}
}

// WithHeader sets a single header on the request.
func WithHeader(key, value string) FetchOption {
	return func(opts *fetchOptions) {
		opts.headers.Set(key, value)
	}
}

// WithQuery merges query parameters into the request URL.
func WithQuery(values url.Values) FetchOption {
	return func(opts *fetchOptions) {
		for key, vs := range values {
			for _, v := range vs {
				opts.query.Add(key, v)
			}
		}
	}
}

// WithJSONBody marshals v as the request body and sets the Content-Type.
// A marshal failure surfaces when the request is sent.
func WithJSONBody(v any) FetchOption {
	return func(opts *fetchOptions) {
		data, err := json.Marshal(v)
		if err != nil {
			opts.err = fmt.Errorf("failed to encode request body: %w", err)
			return
		}
		opts.body = data
		opts.headers.Set("Content-Type", ContentTypeJSON)
	}
}

// WithMaxResponseSize sets the maximum response body size.
func WithMaxResponseSize(size int64) FetchOption {
	return func(opts *fetchOptions) {
		opts.maxResponseSize = size
	}
}

// WithoutContentTypeValidation disables Content-Type validation.
func WithoutContentTypeValidation() FetchOption {
	return func(opts *fetchOptions) {
		opts.skipContentTypeValidation = true
	}
}

// Fetch performs an HTTP request and returns the raw body of a 2xx JSON
// response. Non-2xx responses are returned as *HTTPError.
func Fetch(
	ctx context.Context,
	client HTTPClient,
	requestURL string,
	opts ...FetchOption,
) (*FetchResult[[]byte], error) {
	options := newFetchOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.err != nil {
		return nil, options.err
	}

	if options.headers.Get("Accept") == "" {
		options.headers.Set("Accept", ContentTypeJSON)
	}

	u, err := url.Parse(requestURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse request URL: %w", err)
	}
	if len(options.query) > 0 {
		q := u.Query()
		for key, vs := range options.query {
			for _, v := range vs {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if options.body != nil {
		body = bytes.NewReader(options.body)
	}
	req, err := http.NewRequestWithContext(ctx, options.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range options.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, options.maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview := string(data)
		if len(preview) > DefaultErrorPreviewSize {
			preview = preview[:DefaultErrorPreviewSize]
		}
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       preview,
			URL:        u.Redacted(),
		}
	}

	if !options.skipContentTypeValidation {
		contentType := resp.Header.Get("Content-Type")
		if !strings.Contains(strings.ToLower(contentType), ContentTypeJSON) {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedContentType, contentType)
		}
	}

	return &FetchResult[[]byte]{
		Data:       data,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
	}, nil
}

// FetchJSON performs Fetch and decodes the body into T.
func FetchJSON[T any](
	ctx context.Context,
	client HTTPClient,
	requestURL string,
	opts ...FetchOption,
) (*FetchResult[T], error) {
	raw, err := Fetch(ctx, client, requestURL, opts...)
	if err != nil {
		return nil, err
	}

	var data T
	if err := json.Unmarshal(raw.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &FetchResult[T]{
		Data:       data,
		StatusCode: raw.StatusCode,
		Headers:    raw.Headers,
	}, nil
}
