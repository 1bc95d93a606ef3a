// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStage(t *testing.T) {
	t.Parallel()

	before := testutil.ToFloat64(stageCallsTotal.WithLabelValues("test_stage", OutcomeSuccess))
	RecordStage("test_stage", OutcomeSuccess, 10*time.Millisecond)
	RecordStage("test_stage", OutcomeSkipped, 0)

	assert.Equal(t, before+1, testutil.ToFloat64(stageCallsTotal.WithLabelValues("test_stage", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(stageCallsTotal.WithLabelValues("test_stage", OutcomeSkipped)))
}

func TestRecordTokensIgnoresZero(t *testing.T) {
	t.Parallel()

	RecordTokens("test-model", "input", 0)
	RecordTokens("test-model", "output", 12)

	assert.Equal(t, 0.0, testutil.ToFloat64(llmTokensTotal.WithLabelValues("test-model", "input")))
	assert.Equal(t, 12.0, testutil.ToFloat64(llmTokensTotal.WithLabelValues("test-model", "output")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	RecordRetry("handler_test")
	RecordToolCall("handler_test_tool", OutcomeSuccess, time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ontology_annotator_upstream_retries_total{service="handler_test"} 1`)
	assert.Contains(t, string(body), `ontology_annotator_tool_calls_total{outcome="success",tool="handler_test_tool"} 1`)
}
