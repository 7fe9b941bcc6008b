// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package impact determines the blast radius of a code change.
//
// A Service scans a repository, parses every source file, builds one call
// graph over all of them and then reports, for each changed entity, the
// entities that call it directly or transitively within a depth bound.
//
// # Lifecycle
//
// Every Analyze call is one independent run: scan, parse all files, build
// all nodes, build all edges, query. Nothing is cached between runs. No
// query ever sees a partially built graph.
//
// # Example
//
//	svc, err := impact.NewService("/path/to/repo", config.Default())
//	if err != nil {
//	    return err
//	}
//	result, err := svc.Analyze(ctx, []impact.ChangedFile{
//	    {Path: "src/api/client.ts", Entities: []string{"fetchUser"}},
//	})
package impact

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/naknumberone/smart-code-review/services/impact/analyzer"
	"github.com/naknumberone/smart-code-review/services/impact/ast"
	"github.com/naknumberone/smart-code-review/services/impact/config"
	"github.com/naknumberone/smart-code-review/services/impact/graph"
	"github.com/naknumberone/smart-code-review/services/impact/scanner"
	"github.com/naknumberone/smart-code-review/services/impact/telemetry"
)

var tracer = otel.Tracer("review_impact.service")

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for the service and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIgnoreLines replaces the root .gitignore with the given patterns.
func WithIgnoreLines(lines ...string) Option {
	return func(s *Service) {
		s.scannerOpts = append(s.scannerOpts, scanner.WithIgnoreLines(lines...))
	}
}

// Service runs impact analysis over one repository.
//
// # Thread Safety
//
// Analyze may be called concurrently; each call owns its parse results and
// graph. The tree-sitter parser pools are shared.
type Service struct {
	root        string
	cfg         config.Config
	scanner     *scanner.Scanner
	parser      *ast.Parser
	builder     *graph.Builder
	scannerOpts []scanner.Option
	logger      *slog.Logger
}

// NewService creates a Service for the repository at root.
//
// # Inputs
//
//   - root: Repository root directory.
//   - cfg: Configuration. Validated here.
//   - opts: Optional settings.
//
// # Outputs
//
//   - *Service: Ready to Analyze.
//   - error: ErrEmptyRoot, scanner.ErrInvalidRoot, or config.ErrInvalidConfig.
func NewService(root string, cfg config.Config, opts ...Option) (*Service, error) {
	if root == "" {
		return nil, ErrEmptyRoot
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	sc, err := scanner.New(root, cfg, append([]scanner.Option{scanner.WithLogger(s.logger)}, s.scannerOpts...)...)
	if err != nil {
		return nil, err
	}
	s.scanner = sc
	s.root = sc.Root()
	s.parser = ast.NewParser(cfg, ast.WithLogger(s.logger))
	s.builder = graph.NewBuilder(cfg, graph.WithBuilderLogger(s.logger))
	return s, nil
}

// Root returns the absolute repository root.
func (s *Service) Root() string {
	return s.root
}

// Scanner returns the file scanner, for callers that need the same ignore
// rules, such as a file watcher.
func (s *Service) Scanner() *scanner.Scanner {
	return s.scanner
}

// Parser returns the service's parser.
func (s *Service) Parser() *ast.Parser {
	return s.parser
}

// Analyze runs one full analysis for the changed entities.
//
// # Description
//
// Scans the repository, parses every file with bounded parallelism, builds
// the call graph once all parses have finished, then queries each changed
// entity. Files that cannot be read or parsed are logged and left out.
// Entities with no node in the graph are left out of the result.
//
// # Outputs
//
//   - *Result: Impacts grouped by changed file.
//   - error: Scan failure of the root, or the context error.
func (s *Service) Analyze(ctx context.Context, changed []ChangedFile) (*Result, error) {
	runID := uuid.NewString()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "Service.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("impact.run_id", runID))
	logger := telemetry.LoggerWithTrace(ctx, s.logger).With(slog.String("run_id", runID))

	fail := func(phase string, err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, phase+" failed")
		return nil, err
	}

	files, err := s.scanner.Scan(ctx)
	if err != nil {
		return fail("scan", err)
	}
	logger.Info("scan complete", slog.Int("files", len(files)))

	parsed, failed, err := s.parseAll(ctx, logger, files)
	if err != nil {
		return fail("parse", err)
	}
	logger.Info("parse complete",
		slog.Int("parsed", len(parsed)),
		slog.Int("failed", failed))

	g, err := s.builder.Build(ctx, parsed)
	if err != nil {
		return fail("build", err)
	}
	if err := ctx.Err(); err != nil {
		return fail("query", err)
	}

	a := analyzer.New(g, s.cfg, analyzer.WithLogger(logger))
	result := &Result{
		RunID:   runID,
		Impacts: make(map[string][]analyzer.EntityImpact),
		Stats: Stats{
			FilesScanned:    len(files),
			FilesParsed:     len(parsed),
			FilesFailed:     failed,
			Nodes:           g.NodeCount(),
			Edges:           g.EdgeCount(),
			UnresolvedCalls: g.Stats().Unresolved,
		},
	}

	for _, cf := range changed {
		var impacts []analyzer.EntityImpact
		for _, name := range distinct(cf.Entities) {
			result.Stats.EntitiesQueried++
			imp, ok := a.Analyze(ctx, name, cf.Path)
			if !ok {
				result.Stats.EntitiesMissing++
				logger.Debug("entity not in graph",
					slog.String("file", cf.Path),
					slog.String("entity", name))
				continue
			}
			logger.Info("entity impact",
				slog.String("file", cf.Path),
				slog.String("entity", name),
				slog.Int("direct", len(imp.DirectCallers)),
				slog.Int("total", len(imp.AllCallers)))
			impacts = append(impacts, *imp)
		}
		if len(impacts) > 0 {
			result.Impacts[cf.Path] = append(result.Impacts[cf.Path], impacts...)
		}
	}

	result.Stats.DurationMs = time.Since(start).Milliseconds()
	span.SetAttributes(
		attribute.Int("impact.files_scanned", result.Stats.FilesScanned),
		attribute.Int("impact.nodes", result.Stats.Nodes),
		attribute.Int("impact.changed_files", len(result.Impacts)),
	)
	logger.Info("impact analysis complete",
		slog.Int("changed_files", len(result.Impacts)),
		slog.Int64("duration_ms", result.Stats.DurationMs))
	return result, nil
}

// parseAll reads and parses files concurrently. Per-file failures are
// logged and counted; only context cancellation aborts.
func (s *Service) parseAll(ctx context.Context, logger *slog.Logger, files []string) (map[string]*ast.ParseResult, int, error) {
	var (
		mu     sync.Mutex
		parsed = make(map[string]*ast.ParseResult, len(files))
		failed int
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(s.cfg.ParseWorkers, 1))

	for _, rel := range files {
		eg.Go(func() error {
			res, err := s.parseFile(egCtx, rel)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				logger.Warn("skipping file",
					slog.String("file", rel),
					slog.String("error", err.Error()))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			parsed[rel] = res
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}
	return parsed, failed, nil
}

func (s *Service) parseFile(ctx context.Context, rel string) (*ast.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, &FileError{Path: rel, Op: "read", Err: err}
	}
	res, err := s.parser.Parse(ctx, content, rel)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &FileError{Path: rel, Op: "parse", Err: err}
	}
	return res, nil
}

// distinct returns names without duplicates or empty strings, in order.
func distinct(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
