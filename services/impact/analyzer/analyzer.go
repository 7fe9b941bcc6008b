// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyzer computes the blast radius of an entity by walking caller
// edges of a frozen call graph.
package analyzer

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/naknumberone/smart-code-review/services/impact/config"
	"github.com/naknumberone/smart-code-review/services/impact/graph"
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMaxDepth overrides the configured traversal depth. Negative values
// are ignored.
func WithMaxDepth(depth int) Option {
	return func(a *Analyzer) {
		if depth >= 0 {
			a.maxDepth = depth
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Analyzer answers impact queries against one graph.
//
// # Description
//
// Each query is a breadth-first traversal over caller edges starting at the
// queried entity. A caller at distance d is reported when d <= max depth;
// nodes at the max depth are never expanded, so nothing further away is
// visited. Every node is expanded at most once, which bounds the work on
// cyclic graphs.
//
// # Thread Safety
//
// Analyzer never mutates the graph and is safe for concurrent use.
type Analyzer struct {
	graph    *graph.Graph
	maxDepth int
	logger   *slog.Logger
}

// New creates an Analyzer over g. The graph should be frozen; an unfrozen
// graph is accepted with a warning.
func New(g *graph.Graph, cfg config.Config, opts ...Option) *Analyzer {
	a := &Analyzer{graph: g, maxDepth: cfg.MaxDepth, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if !g.IsFrozen() {
		a.logger.Warn("analyzer created over unfrozen graph",
			slog.Int("nodes", g.NodeCount()))
	}
	return a
}

// MaxDepth returns the traversal depth bound.
func (a *Analyzer) MaxDepth() int {
	return a.maxDepth
}

type queued struct {
	key   graph.NodeKey
	depth int
}

// Analyze returns the impact of entityName declared in filePath.
//
// # Outputs
//
//   - *EntityImpact: Callers and affected files. Nil when absent.
//   - bool: False when the graph has no such node. Not an error: the entity
//     may live in a file that was filtered out or failed to parse.
func (a *Analyzer) Analyze(ctx context.Context, entityName, filePath string) (*EntityImpact, bool) {
	ctx, span := tracer.Start(ctx, "Analyzer.Analyze")
	defer span.End()
	start := time.Now()

	key := graph.MakeKey(filePath, entityName)
	span.SetAttributes(attribute.String("impact.entity", string(key)))

	if !a.graph.HasNode(key) {
		span.SetAttributes(attribute.Bool("impact.found", false))
		recordQueryMetrics(ctx, time.Since(start), false, 0)
		return nil, false
	}

	direct, all := a.callers(key)
	impact := &EntityImpact{
		EntityName:    entityName,
		File:          filePath,
		DirectCallers: a.callerInfos(direct),
		AllCallers:    a.callerInfos(all),
		AffectedFiles: affectedFiles(all),
	}

	span.SetAttributes(
		attribute.Bool("impact.found", true),
		attribute.Int("impact.direct_callers", len(direct)),
		attribute.Int("impact.all_callers", len(all)),
	)
	recordQueryMetrics(ctx, time.Since(start), true, len(all))
	return impact, true
}

// callers runs the bounded traversal from start. The start node is marked
// expanded up front but can still be reported when a cycle leads back to it.
func (a *Analyzer) callers(start graph.NodeKey) (direct, all []graph.NodeKey) {
	expanded := map[graph.NodeKey]bool{start: true}
	reported := make(map[graph.NodeKey]bool)
	directSeen := make(map[graph.NodeKey]bool)

	queue := []queued{{key: start}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if item.depth >= a.maxDepth {
			continue
		}
		node, ok := a.graph.GetNode(item.key)
		if !ok {
			continue
		}

		for _, caller := range node.Callers {
			if item.depth == 0 && !directSeen[caller] {
				directSeen[caller] = true
				direct = append(direct, caller)
			}
			if !reported[caller] {
				reported[caller] = true
				all = append(all, caller)
			}
			if !expanded[caller] {
				expanded[caller] = true
				queue = append(queue, queued{key: caller, depth: item.depth + 1})
			}
		}
	}
	return direct, all
}

func (a *Analyzer) callerInfos(keys []graph.NodeKey) []CallerInfo {
	infos := make([]CallerInfo, 0, len(keys))
	for _, key := range keys {
		node, ok := a.graph.GetNode(key)
		if !ok {
			continue
		}
		infos = append(infos, CallerInfo{
			File:      node.File,
			StartLine: node.StartLine,
			EndLine:   node.EndLine,
			Name:      node.Name,
			Source:    node.Source,
		})
	}
	return infos
}

func affectedFiles(keys []graph.NodeKey) []string {
	seen := make(map[string]struct{}, len(keys))
	files := make([]string, 0, len(keys))
	for _, key := range keys {
		f := key.File()
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
