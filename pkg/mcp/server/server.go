// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stacklok/ontology-annotator/pkg/config"
	"github.com/stacklok/ontology-annotator/pkg/domain"
	"github.com/stacklok/ontology-annotator/pkg/logger"
	"github.com/stacklok/ontology-annotator/pkg/metrics"
	"github.com/stacklok/ontology-annotator/pkg/versions"
)

const (
	// ServerName is the name advertised during MCP initialization.
	ServerName = "ontology-annotator"

	// EndpointPath is where the streamable HTTP transport is served.
	EndpointPath = "/mcp"
	// MetricsPath is where Prometheus metrics are served on the HTTP transport.
	MetricsPath = "/metrics"
)

// Config holds the configuration for the MCP server
type Config struct {
	Transport string
	Host      string
	Port      string
}

// Server represents the ontology annotation MCP server
type Server struct {
	config     *Config
	mcpServer  *server.MCPServer
	httpServer *http.Server
	handler    *Handler
}

// New creates a new MCP server exposing handler's tools.
func New(ctx context.Context, cfg *Config, handler *Handler) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if cfg.Transport == "" {
		cfg.Transport = config.TransportStdio
	}

	versionInfo := versions.GetVersionInfo()
	mcpServer := server.NewMCPServer(
		ServerName,
		versionInfo.Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)
	registerTools(mcpServer, handler)

	s := &Server{
		config:    cfg,
		mcpServer: mcpServer,
		handler:   handler,
	}

	switch cfg.Transport {
	case config.TransportStdio:
	case config.TransportStreamableHTTP:
		streamableServer := server.NewStreamableHTTPServer(
			mcpServer,
			server.WithEndpointPath(EndpointPath),
			server.WithHTTPContextFunc(func(reqCtx context.Context, _ *http.Request) context.Context {
				return mergeCancel(reqCtx, ctx)
			}),
		)
		mux := http.NewServeMux()
		mux.Handle(EndpointPath, streamableServer)
		mux.Handle(MetricsPath, metrics.Handler())

		s.httpServer = &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		}
	default:
		return nil, fmt.Errorf("unsupported transport %q (valid: %s, %s)",
			cfg.Transport, config.TransportStdio, config.TransportStreamableHTTP)
	}

	return s, nil
}

// Start serves MCP requests until ctx is done or the transport fails.
func (s *Server) Start(ctx context.Context) error {
	if s.httpServer == nil {
		logger.Info("Starting ontology annotator MCP server on stdio")
		stdio := server.NewStdioServer(s.mcpServer)
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	}

	logger.Infof("Starting ontology annotator MCP server on %s", s.GetAddress())
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the MCP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	logger.Info("Shutting down MCP server...")
	return s.httpServer.Shutdown(ctx)
}

// GetAddress returns the server address
func (s *Server) GetAddress() string {
	if s.httpServer == nil {
		return config.TransportStdio
	}
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(s.config.Host, s.config.Port), EndpointPath)
}

// mergeCancel returns reqCtx cancelled also when parent is done, so server
// shutdown aborts in-flight tool calls.
func mergeCancel(reqCtx, parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(reqCtx)
	stop := context.AfterFunc(parent, cancel)
	context.AfterFunc(ctx, func() {
		stop()
	})
	return ctx
}

// registerTools registers all MCP tools with the server
func registerTools(mcpServer *server.MCPServer, handler *Handler) {
	domainEnum := domain.Names()

	mcpServer.AddTool(mcp.Tool{
		Name:        ToolAnnotateTerms,
		Description: "Map known text terms to standardized ontology IDs. Use when you have specific terms to annotate.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"texts": map[string]any{
					"description": "A term or list of terms to annotate",
					"oneOf": []any{
						map[string]any{"type": "string"},
						map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
				},
				"domain": map[string]any{
					"type":        "string",
					"description": "Biomedical domain used to pick default ontologies",
					"enum":        domainEnum,
				},
				"preferred_ontologies": map[string]any{
					"type":        "array",
					"description": "Ontology namespaces to search, overriding the domain defaults (e.g. mondo, hp)",
					"items":       map[string]any{"type": "string"},
				},
				"use_bioportal_fallback": map[string]any{
					"type":        "boolean",
					"description": "Search BioPortal when no primary match meets min_confidence",
					"default":     true,
				},
				"min_confidence": map[string]any{
					"type":        "number",
					"description": "Minimum confidence for returned matches",
					"default":     defaultMinConfidence,
					"minimum":     0,
					"maximum":     1,
				},
			},
			Required: []string{"texts"},
		},
	}, handler.AnnotateOntologyTerms)

	mcpServer.AddTool(mcp.Tool{
		Name:        ToolExtractAndAnnotate,
		Description: "Extract biomedical entities from natural language and annotate them. Use for full sentences or queries.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "Free text to extract entities from",
				},
				"domains": map[string]any{
					"type":        "array",
					"description": "Entity domains to extract (all when omitted)",
					"items":       map[string]any{"type": "string", "enum": domainEnum},
				},
				"preferred_ontologies": map[string]any{
					"type":        "object",
					"description": "Ontology namespaces to search per domain (e.g. {\"disease\": [\"mondo\"]})",
					"additionalProperties": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"use_bioportal_fallback": map[string]any{
					"type":        "boolean",
					"description": "Search BioPortal when no primary match meets min_confidence",
					"default":     true,
				},
				"min_confidence": map[string]any{
					"type":        "number",
					"description": "Minimum confidence for returned matches",
					"default":     defaultMinConfidence,
					"minimum":     0,
					"maximum":     1,
				},
			},
			Required: []string{"text"},
		},
	}, handler.ExtractAndAnnotate)
}
