// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stacklok/ontology-annotator/pkg/domain"
	"github.com/stacklok/ontology-annotator/pkg/logger"
)

const (
	defaultOLSURL         = "https://www.ebi.ac.uk/ols4/api"
	defaultBioPortalURL   = "https://data.bioontology.org"
	defaultAnthropicURL   = "https://api.anthropic.com"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"

	// DefaultMCPPort is the default port for the streamable HTTP transport
	DefaultMCPPort = "4483"

	configName = "ontology-annotator"
)

// dotEnvFiles are read in order; earlier files and the real environment win.
var dotEnvFiles = []string{".env.local", ".env"}

// Load builds the settings from .env files, the environment and an optional
// YAML config file. v may carry flag bindings; nil uses a fresh viper instance.
// An explicit configFile must exist; otherwise the default locations are
// searched and a missing file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := loadDotEnv(dotEnvFiles); err != nil {
		return nil, err
	}

	if v == nil {
		v = viper.New()
	}
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/" + configName)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debugf("Loaded configuration file %s", used)
	}

	return FromViper(v)
}

// FromViper converts the viper key space into a validated Config.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	var errs []error

	duration := func(key string) time.Duration {
		d, err := parseDuration(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.ToUpper(key), err))
		}
		return d
	}

	// OLS
	cfg.OLS.APIURL = strings.TrimRight(v.GetString("ols_api_url"), "/")
	cfg.OLS.Timeout = duration("ols_timeout")
	cfg.OLS.MaxResults = v.GetInt("ols_max_results")
	cfg.OLS.RateLimit = v.GetFloat64("ols_rate_limit")
	cfg.OLS.RateBurst = v.GetInt("ols_rate_burst")

	// BioPortal
	cfg.BioPortal.APIKey = strings.TrimSpace(v.GetString("bioportal_api_key"))
	cfg.BioPortal.APIURL = strings.TrimRight(v.GetString("bioportal_api_url"), "/")
	cfg.BioPortal.Timeout = duration("bioportal_timeout")
	cfg.BioPortal.MaxResults = v.GetInt("bioportal_max_results")
	cfg.BioPortal.RateLimit = v.GetFloat64("bioportal_rate_limit")
	cfg.BioPortal.RateBurst = v.GetInt("bioportal_rate_burst")

	// Anthropic
	cfg.Anthropic.APIKey = strings.TrimSpace(v.GetString("anthropic_api_key"))
	cfg.Anthropic.APIURL = strings.TrimRight(v.GetString("anthropic_api_url"), "/")
	cfg.Anthropic.Model = v.GetString("anthropic_model")
	cfg.Anthropic.MaxTokens = v.GetInt("anthropic_max_tokens")
	cfg.Anthropic.Timeout = duration("anthropic_timeout")

	// Retry
	cfg.Retry.MaxAttempts = v.GetInt("max_retries")
	cfg.Retry.MinWait = duration("retry_min_wait")
	cfg.Retry.MaxWait = duration("retry_max_wait")

	// Annotation
	cfg.Annotation.BatchConcurrency = v.GetInt("batch_concurrency")
	cfg.Annotation.RequestTimeout = duration("request_timeout")
	cfg.Annotation.DomainOntologies = make(map[domain.Domain][]string, len(domain.All()))
	for _, d := range domain.All() {
		key := fmt.Sprintf("default_%s_ontologies", d)
		if list := domain.SplitOntologies(v.GetString(key)); len(list) > 0 {
			cfg.Annotation.DomainOntologies[d] = list
		} else {
			cfg.Annotation.DomainOntologies[d] = domain.BuiltinOntologies(d)
		}
	}

	// Network
	cfg.Network.CACertPath = v.GetString("ca_cert_path")
	cfg.Network.AllowPrivateIPs = v.GetBool("allow_private_ips")
	cfg.Network.AllowInsecureHTTP = v.GetBool("allow_insecure_http")

	// Server
	cfg.Server.Transport = strings.ToLower(v.GetString("mcp_transport"))
	cfg.Server.Host = v.GetString("mcp_host")
	cfg.Server.Port = v.GetString("mcp_port")

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Settings flattens c into the key space FromViper reads, so the result can
// be written out as a config file and loaded back. Credentials are omitted.
func (c *Config) Settings() map[string]any {
	s := map[string]any{
		"ols_api_url":     c.OLS.APIURL,
		"ols_timeout":     c.OLS.Timeout.String(),
		"ols_max_results": c.OLS.MaxResults,
		"ols_rate_limit":  c.OLS.RateLimit,
		"ols_rate_burst":  c.OLS.RateBurst,

		"bioportal_api_url":     c.BioPortal.APIURL,
		"bioportal_timeout":     c.BioPortal.Timeout.String(),
		"bioportal_max_results": c.BioPortal.MaxResults,
		"bioportal_rate_limit":  c.BioPortal.RateLimit,
		"bioportal_rate_burst":  c.BioPortal.RateBurst,

		"anthropic_api_url":    c.Anthropic.APIURL,
		"anthropic_model":      c.Anthropic.Model,
		"anthropic_max_tokens": c.Anthropic.MaxTokens,
		"anthropic_timeout":    c.Anthropic.Timeout.String(),

		"max_retries":    c.Retry.MaxAttempts,
		"retry_min_wait": c.Retry.MinWait.String(),
		"retry_max_wait": c.Retry.MaxWait.String(),

		"batch_concurrency": c.Annotation.BatchConcurrency,
		"request_timeout":   c.Annotation.RequestTimeout.String(),

		"ca_cert_path":        c.Network.CACertPath,
		"allow_private_ips":   c.Network.AllowPrivateIPs,
		"allow_insecure_http": c.Network.AllowInsecureHTTP,

		"mcp_transport": c.Server.Transport,
		"mcp_host":      c.Server.Host,
		"mcp_port":      c.Server.Port,
	}
	for _, d := range domain.All() {
		s[fmt.Sprintf("default_%s_ontologies", d)] = strings.Join(c.OntologiesFor(d), ",")
	}
	return s
}

func setDefaults(v *viper.Viper) {
	for key, value := range Default().Settings() {
		v.SetDefault(key, value)
	}
	v.SetDefault("bioportal_api_key", "")
	v.SetDefault("anthropic_api_key", "")
}

// parseDuration accepts Go duration strings ("30s") and bare numbers, which
// are read as seconds.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}

// loadDotEnv seeds the process environment from the given files.
// Missing files are skipped; variables already set are never overridden.
func loadDotEnv(files []string) error {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load dotenv files: %w", err)
	}
	return nil
}
