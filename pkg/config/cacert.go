// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// validateCACert checks that certPath names a readable PEM bundle holding at
// least one CA certificate.
func validateCACert(certPath string) error {
	certPath = filepath.Clean(certPath)

	content, err := os.ReadFile(certPath)
	if err != nil {
		return fmt.Errorf("CA certificate file not found or not accessible: %w", err)
	}

	block, _ := pem.Decode(content)
	if block == nil || block.Type != "CERTIFICATE" {
		return errors.New("CA certificate file is not PEM encoded")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("invalid CA certificate: %w", err)
	}
	if !cert.IsCA {
		return errors.New("certificate is not a CA certificate")
	}
	return nil
}
