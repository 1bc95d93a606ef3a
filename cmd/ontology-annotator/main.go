// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the ontology annotator.
package main

import (
	"os"

	"github.com/stacklok/ontology-annotator/cmd/ontology-annotator/app"
	"github.com/stacklok/ontology-annotator/pkg/logger"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
