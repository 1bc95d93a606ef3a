// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatingTransport(t *testing.T) {
	t.Parallel()

	ok := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody}, nil
	})

	tests := []struct {
		name          string
		url           string
		allowInsecure bool
		wantErr       string
	}{
		{"https allowed", "https://www.ebi.ac.uk/ols4/api/search", false, ""},
		{"http rejected", "http://www.ebi.ac.uk/ols4/api/search", false, "not HTTPS scheme"},
		{"http allowed when insecure", "http://localhost:8080/search", true, ""},
		{"ftp rejected", "ftp://example.com/file", true, "unsupported scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			transport := &ValidatingTransport{Transport: ok, AllowInsecure: tt.allowInsecure}
			req, err := http.NewRequest(http.MethodGet, tt.url, nil)
			require.NoError(t, err)

			resp, err := transport.RoundTrip(req)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		})
	}
}

func TestBuildRejectsPrivateAddressesByDefault(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client, err := NewHttpClientBuilder().WithInsecureHTTP(true).Build()
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private IP address")
}

func TestBuildSetsUserAgentAndTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ontology-annotator/test", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client, err := NewHttpClientBuilder().
		WithPrivateIPs(true).
		WithInsecureHTTP(true).
		WithUserAgent("ontology-annotator/test").
		WithTimeout(5 * time.Second).
		Build()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, client.Timeout)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
}

func TestBuildCABundleErrors(t *testing.T) {
	t.Parallel()

	_, err := NewHttpClientBuilder().WithCABundle(filepath.Join(t.TempDir(), "missing.pem")).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read CA certificate bundle")

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o600))
	_, err = NewHttpClientBuilder().WithCABundle(bad).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse CA certificate bundle")
}

func TestAddressReferencesPrivateIp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		private bool
	}{
		{"127.0.0.1:80", true},
		{"10.1.2.3:443", true},
		{"192.168.1.1:443", true},
		{"[::1]:443", true},
		{"193.62.193.80:443", false},
		{"8.8.8.8:53", false},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()
			err := AddressReferencesPrivateIp(tt.address)
			if tt.private {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, AddressReferencesPrivateIp("no-port"))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
