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
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/naknumberone/smart-code-review/services/impact/ast"
	"github.com/naknumberone/smart-code-review/services/impact/config"
)

// BuildStats summarizes one graph build.
type BuildStats struct {
	// Files is the number of parse results consumed.
	Files int

	// Nodes and Edges are the final graph sizes.
	Nodes int
	Edges int

	// Resolved and Unresolved count call names per calling definition.
	Resolved   int
	Unresolved int

	// DuplicateNames counts definitions that replaced an earlier node with
	// the same key.
	DuplicateNames int

	// InvalidNames counts entities rejected by AddNode.
	InvalidNames int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuilderLogger sets the logger for build diagnostics.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Builder constructs call graphs.
//
// Thread Safety:
//
//	A Builder holds only configuration and is safe for concurrent use.
//	Each Build call produces an independent Graph.
type Builder struct {
	resolver *resolver
	logger   *slog.Logger
}

// NewBuilder creates a Builder that resolves imports with the alias table
// and suffix list of cfg.
func NewBuilder(cfg config.Config, opts ...BuilderOption) *Builder {
	b := &Builder{
		resolver: newResolver(cfg.SortedAliases(), cfg.ImportSuffixes),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build creates a frozen call graph from parse results keyed by file path.
//
// Description:
//
//	Phase 1 creates a node for every entity of every file. Phase 2 resolves
//	every call name of every entity and adds an edge per resolved call.
//	Phase 2 starts only after phase 1 has seen all files, so a callee in a
//	file that sorts after its caller is still found. Files are processed in
//	sorted path order in both phases, making the result independent of map
//	iteration order.
//
//	A call name resolves to the first hit of:
//	  1. a node with that name in the same file;
//	  2. for each internal import, in source order, a node with that name in
//	     the file the import resolves to.
//	Calls that resolve nowhere are dropped without error.
//
// Inputs:
//
//	ctx - Context for cancellation, checked between phases and files.
//	results - Parse results by slash-separated relative path. Nil values
//	          are skipped.
//
// Outputs:
//
//	*Graph - The frozen graph.
//	error - ErrBuildCancelled wrapping the context error.
func (b *Builder) Build(ctx context.Context, results map[string]*ast.ParseResult) (*Graph, error) {
	ctx, span := tracer.Start(ctx, "Builder.Build")
	defer span.End()
	start := time.Now()

	paths := make([]string, 0, len(results))
	for path, res := range results {
		if res != nil {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	g := NewGraph()
	stats := BuildStats{Files: len(paths)}

	fail := func(err error) (*Graph, error) {
		err = fmt.Errorf("%w: %w", ErrBuildCancelled, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "build cancelled")
		recordBuildMetrics(ctx, time.Since(start), stats, false)
		return nil, err
	}

	// Phase 1: nodes.
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		for _, fn := range results[path].Functions {
			_, replaced, err := g.AddNode(path, fn)
			if err != nil {
				stats.InvalidNames++
				b.logger.Debug("entity skipped",
					slog.String("file", path),
					slog.String("error", err.Error()))
				continue
			}
			if replaced {
				stats.DuplicateNames++
				b.logger.Debug("duplicate entity name, last definition wins",
					slog.String("file", path),
					slog.String("name", fn.Name))
			}
		}
	}

	// Phase 2: edges.
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		res := results[path]
		targets := b.resolver.importTargets(g, path, res.Imports)

		for _, fn := range res.Functions {
			caller := MakeKey(path, fn.Name)
			if !g.HasNode(caller) {
				continue
			}
			for _, call := range fn.Calls {
				callee, ok := resolveCall(g, path, targets, call)
				if !ok {
					stats.Unresolved++
					continue
				}
				if err := g.AddEdge(caller, callee); err != nil {
					// Both keys were checked above.
					stats.Unresolved++
					continue
				}
				stats.Resolved++
			}
		}
	}

	g.Freeze()
	stats.Nodes = g.NodeCount()
	stats.Edges = g.EdgeCount()
	g.stats = stats

	span.SetAttributes(
		attribute.Int("graph.files", stats.Files),
		attribute.Int("graph.nodes", stats.Nodes),
		attribute.Int("graph.edges", stats.Edges),
		attribute.Int("graph.unresolved_calls", stats.Unresolved),
	)
	recordBuildMetrics(ctx, time.Since(start), stats, true)

	b.logger.Info("call graph built",
		slog.Int("files", stats.Files),
		slog.Int("nodes", stats.Nodes),
		slog.Int("edges", stats.Edges),
		slog.Int("unresolved_calls", stats.Unresolved))

	return g, nil
}

// resolveCall finds the node a call name in file binds to.
func resolveCall(g *Graph, file string, importTargets []string, call string) (NodeKey, bool) {
	if key := MakeKey(file, call); g.HasNode(key) {
		return key, true
	}
	for _, target := range importTargets {
		if key := MakeKey(target, call); g.HasNode(key) {
			return key, true
		}
	}
	return "", false
}
