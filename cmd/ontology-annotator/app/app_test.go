// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/ontology-annotator/pkg/annotator"
	"github.com/stacklok/ontology-annotator/pkg/config"
	"github.com/stacklok/ontology-annotator/pkg/domain"
	"github.com/stacklok/ontology-annotator/pkg/versions"
)

func TestWriteConfigRedactsCredentials(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.BioPortal.APIKey = "bp-secret"
	cfg.Anthropic.APIKey = "sk-ant-secret"

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg))

	out := buf.String()
	assert.NotContains(t, out, "bp-secret")
	assert.NotContains(t, out, "sk-ant-secret")

	assert.Contains(t, out, "# bioportal_api_key set: true")
	assert.Contains(t, out, "# anthropic_api_key set: true")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "30s", decoded["ols_timeout"])
	assert.Equal(t, "mondo,doid,hp", decoded["default_disease_ontologies"])
	assert.NotContains(t, decoded, "bioportal_api_key")
	assert.NotContains(t, decoded, "anthropic_api_key")
}

func TestWriteConfigOutputLoadsBack(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.OLS.MaxResults = 42
	cfg.Server.Host = "0.0.0.0"

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg))
	path := filepath.Join(t.TempDir(), "effective.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	loaded, err := config.Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.OLS.MaxResults)
	assert.Equal(t, "0.0.0.0", loaded.Server.Host)
	assert.Equal(t, cfg.OLS.Timeout, loaded.OLS.Timeout)
	assert.Equal(t, cfg.OntologiesFor(domain.Disease), loaded.OntologiesFor(domain.Disease))
}

func TestQueryFlags(t *testing.T) {
	t.Parallel()

	f := queryFlags{ontologies: []string{"MONDO", "mondo", "HP"}, minConfidence: 0.5, noFallback: true}
	q := f.query("fever", domain.Phenotype)
	assert.Equal(t, "fever", q.Text)
	assert.Equal(t, domain.Phenotype, q.Domain)
	assert.Equal(t, []string{"mondo", "hp"}, q.PreferredOntologies)
	assert.InDelta(t, 0.5, q.MinConfidence, 1e-9)
	assert.False(t, q.AllowFallback)
}

func TestBuildComponents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		configure     func(*config.Config)
		wantFallback  bool
		wantExtractor bool
	}{
		{
			name: "no credentials",
		},
		{
			name: "all credentials",
			configure: func(c *config.Config) {
				c.BioPortal.APIKey = "bp"
				c.Anthropic.APIKey = "sk"
			},
			wantFallback:  true,
			wantExtractor: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			if tt.configure != nil {
				tt.configure(cfg)
			}
			c, err := buildComponents(cfg)
			require.NoError(t, err)
			require.NotNil(t, c.pipeline)
			assert.Equal(t, tt.wantFallback, c.pipeline.FallbackConfigured())
			assert.Equal(t, tt.wantExtractor, c.extractor != nil)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--json"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"version": "`+versions.GetVersionInfo().Version+`"`)
}

func TestRenderAnnotationsTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := renderAnnotationsTable(&buf, []annotator.Result{
		{
			InputText: "diabetes mellitus",
			Matches: []annotator.Match{{
				OntologyID: "MONDO:0005015", Label: "diabetes mellitus", Confidence: 1, SourceStage: annotator.StageExact,
			}},
		},
		{InputText: "zzzz", Matches: []annotator.Match{}},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "MONDO:0005015")
	assert.Contains(t, out, "1.0000")
	assert.Contains(t, out, "exact")
	assert.Contains(t, out, "(no match)")

	buf.Reset()
	require.NoError(t, renderAnnotationsTable(&buf, nil))
	assert.Equal(t, "No terms annotated.\n", buf.String())
}
