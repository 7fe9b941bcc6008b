// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"path"
	"strings"

	"github.com/naknumberone/smart-code-review/services/impact/ast"
	"github.com/naknumberone/smart-code-review/services/impact/config"
)

// resolver maps import specifiers to repository files.
type resolver struct {
	aliases  []config.Alias
	suffixes []string
}

func newResolver(aliases []config.Alias, suffixes []string) *resolver {
	return &resolver{aliases: aliases, suffixes: suffixes}
}

// importTargets resolves the internal imports of file, in source order.
// Specifiers that are neither aliased nor relative are skipped.
func (r *resolver) importTargets(g *Graph, file string, imports []ast.ImportEdge) []string {
	targets := make([]string, 0, len(imports))
	for _, imp := range imports {
		if !imp.Internal() {
			continue
		}
		base, ok := r.rewrite(file, imp.Source)
		if !ok {
			continue
		}
		targets = append(targets, r.probe(g, base))
	}
	return targets
}

// rewrite turns a specifier into a slash-separated path relative to the
// repository root. Alias substitution takes precedence over relative
// normalization.
func (r *resolver) rewrite(file, spec string) (string, bool) {
	for _, a := range r.aliases {
		if strings.HasPrefix(spec, a.Prefix) {
			return path.Clean(a.Target + strings.TrimPrefix(spec, a.Prefix)), true
		}
	}
	if strings.HasPrefix(spec, ".") {
		return path.Join(path.Dir(file), spec), true
	}
	return "", false
}

// probe returns the first base+suffix that owns a node, or base itself.
func (r *resolver) probe(g *Graph, base string) string {
	for _, suffix := range r.suffixes {
		if candidate := base + suffix; g.HasFile(candidate) {
			return candidate
		}
	}
	return base
}
