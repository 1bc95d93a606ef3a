// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/ontology-annotator/pkg/config"
	"github.com/stacklok/ontology-annotator/pkg/logger"
	mcpserver "github.com/stacklok/ontology-annotator/pkg/mcp/server"
	"github.com/stacklok/ontology-annotator/pkg/networking"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server exposing the annotation tools",
		Long: `Start an MCP (Model Context Protocol) server with two tools:

  annotate_ontology_terms  map known terms to ontology identifiers
  extract_and_annotate     extract entities from free text and annotate them

The default transport is stdio. Use --transport streamable-http to listen on
HTTP, in which case Prometheus metrics are served on /metrics.
Flags can also be set with MCP_TRANSPORT, MCP_HOST and MCP_PORT.`,
		RunE: serveCmdFunc,
	}

	cmd.Flags().String("transport", config.TransportStdio,
		fmt.Sprintf("Transport to serve on (%s or %s)", config.TransportStdio, config.TransportStreamableHTTP))
	cmd.Flags().String("host", "localhost", "Host to listen on for the HTTP transport")
	cmd.Flags().String("port", config.DefaultMCPPort, "Port to listen on for the HTTP transport")

	for key, flag := range map[string]string{
		"mcp_transport": "transport",
		"mcp_host":      "host",
		"mcp_port":      "port",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			logger.Errorf("Error binding %s flag: %v", flag, err)
		}
	}

	return cmd
}

func serveCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Server.Transport == config.TransportStreamableHTTP {
		port, err := networking.ParsePort(cfg.Server.Port)
		if err != nil {
			return err
		}
		if !networking.IsAvailable(cfg.Server.Host, port) {
			return fmt.Errorf("port %d is not available on %s", port, cfg.Server.Host)
		}
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	handlerOpts := []mcpserver.HandlerOption{mcpserver.WithRequestTimeout(cfg.Annotation.RequestTimeout)}
	if c.extractor != nil {
		handlerOpts = append(handlerOpts, mcpserver.WithExtractor(c.extractor))
	}
	handler := mcpserver.NewHandler(c.pipeline, handlerOpts...)

	srv, err := mcpserver.New(ctx, &mcpserver.Config{
		Transport: cfg.Server.Transport,
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
	}, handler)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down MCP server: %w", err)
	}
	return <-errCh
}
