// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	oaerrors "github.com/stacklok/ontology-annotator/pkg/errors"
)

// ClassifyError maps a failed exchange with service onto the application
// error kinds. Timeouts, connection failures, 408, 429 and 5xx responses are
// transient. Other 4xx responses, undecodable bodies and requests refused by
// the client's own URL or address policy are client errors.
// If ctx itself is done the context error is returned unchanged so callers
// can tell cancellation apart from upstream failures.
func ClassifyError(ctx context.Context, service string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		msg := fmt.Sprintf("%s returned status %d", service, httpErr.StatusCode)
		if IsRetryableStatus(httpErr.StatusCode) {
			return oaerrors.NewTransientUpstreamError(msg, err)
		}
		return oaerrors.NewUpstreamClientError(msg, err)
	}

	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrUnexpectedContentType) {
		return oaerrors.NewUpstreamClientError(service+" returned an unusable response", err)
	}

	if errors.Is(err, ErrDisallowedURL) || errors.Is(err, ErrPrivateIpAddress) {
		return oaerrors.NewUpstreamClientError(service+" request refused by client policy", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return oaerrors.NewTransientUpstreamError(service+" request failed", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return oaerrors.NewTransientUpstreamError(service+" connection failed", err)
	}

	return oaerrors.NewUpstreamClientError(service+" request failed", err)
}

// IsRetryableStatus reports whether an HTTP status warrants a retry.
func IsRetryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}
