// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package domain defines the biomedical categories that narrow ontology searches.
package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Domain is a biomedical category such as disease or chemical.
// The zero value is Unspecified and applies no ontology restriction.
type Domain string

const (
	// Unspecified means the caller gave no domain hint.
	Unspecified Domain = ""
	// Disease covers disorders and syndromes.
	Disease Domain = "disease"
	// Chemical covers compounds and drugs.
	Chemical Domain = "chemical"
	// Gene covers genes and gene products.
	Gene Domain = "gene"
	// Phenotype covers observable traits and clinical signs.
	Phenotype Domain = "phenotype"
	// Anatomy covers anatomical structures.
	Anatomy Domain = "anatomy"
	// Organism covers taxa.
	Organism Domain = "organism"
)

// all lists the known domains in a stable order.
var all = []Domain{Disease, Chemical, Gene, Phenotype, Anatomy, Organism}

// builtinOntologies are the default ontology namespaces per domain.
var builtinOntologies = map[Domain][]string{
	Disease:   {"mondo", "doid", "hp"},
	Chemical:  {"chebi", "drugbank"},
	Gene:      {"hgnc", "ncbigene"},
	Phenotype: {"hp", "mp"},
	Anatomy:   {"uberon", "fma"},
	Organism:  {"ncbitaxon"},
}

// All returns every known domain, excluding Unspecified.
func All() []Domain {
	return slices.Clone(all)
}

// Names returns the string form of every known domain.
func Names() []string {
	names := make([]string, len(all))
	for i, d := range all {
		names[i] = string(d)
	}
	return names
}

// Parse converts a case-insensitive string into a Domain.
// An empty or blank string yields Unspecified.
func Parse(s string) (Domain, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Unspecified, nil
	}
	d := Domain(s)
	if !d.Valid() {
		return Unspecified, fmt.Errorf("unknown domain %q (valid domains: %s)", s, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	return slices.Contains(all, d)
}

// String returns the domain name, or "unspecified" for the zero value.
func (d Domain) String() string {
	if d == Unspecified {
		return "unspecified"
	}
	return string(d)
}

// BuiltinOntologies returns a copy of the built-in default ontology list for d.
func BuiltinOntologies(d Domain) []string {
	return slices.Clone(builtinOntologies[d])
}

// NormalizeOntologies lower-cases and trims namespaces, dropping blanks and
// duplicates while keeping the caller's order.
func NormalizeOntologies(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, o := range in {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "" || slices.Contains(out, o) {
			continue
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SplitOntologies parses a comma-separated namespace list.
func SplitOntologies(raw string) []string {
	return NormalizeOntologies(strings.Split(raw, ","))
}
