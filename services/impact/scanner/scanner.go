// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanner walks a repository and produces the candidate source files
// for impact analysis.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/naknumberone/smart-code-review/services/impact/config"
)

// IgnoreFileName is the ignore file read from the scan root.
const IgnoreFileName = ".gitignore"

// vcsDir is pruned regardless of ignore rules.
const vcsDir = ".git"

// Option configures a Scanner.
type Option func(*Scanner)

// WithIgnoreLines replaces the root ignore file with the given gitignore
// lines. Passing no lines disables ignore matching.
func WithIgnoreLines(lines ...string) Option {
	return func(s *Scanner) {
		s.ignoreLines = lines
		s.useLines = true
	}
}

// WithLogger sets the logger for scan warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scanner lists the source files under a root directory.
//
// Description:
//
//	Version-control metadata is always pruned. Directories matching the
//	ignore rules are pruned with their whole subtree, files matching them
//	are skipped, and the remaining files are filtered by the configured
//	extension allow-list.
//
// Thread Safety:
//
//	A Scanner is immutable after New and safe for concurrent use.
type Scanner struct {
	root        string
	cfg         config.Config
	matcher     *ignore.GitIgnore
	ignoreLines []string
	useLines    bool
	logger      *slog.Logger
}

// New creates a Scanner rooted at root.
//
// Inputs:
//
//	root - Repository root directory.
//	cfg - Configuration supplying the extension allow-list.
//	opts - Optional settings.
//
// Outputs:
//
//	*Scanner - The scanner.
//	error - ErrInvalidRoot if root is missing or not a directory.
func New(root string, cfg config.Config, opts ...Option) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, abs)
	}

	s := &Scanner{
		root:   abs,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.matcher = s.compileMatcher()
	return s, nil
}

// Root returns the absolute scan root.
func (s *Scanner) Root() string {
	return s.root
}

func (s *Scanner) compileMatcher() *ignore.GitIgnore {
	if s.useLines {
		if len(s.ignoreLines) == 0 {
			return nil
		}
		return ignore.CompileIgnoreLines(s.ignoreLines...)
	}

	path := filepath.Join(s.root, IgnoreFileName)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	matcher, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		s.logger.Warn("ignore file unreadable, scanning without it",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil
	}
	return matcher
}

// Scan walks the root and returns the accepted files.
//
// Description:
//
//	Paths are relative to the root, slash-separated, in lexical walk order,
//	so the result is stable for a fixed filesystem snapshot. Unreadable
//	subtrees are logged and skipped.
//
// Inputs:
//
//	ctx - Context for cancellation, checked per entry.
//
// Outputs:
//
//	[]string - Relative file paths.
//	error - Non-nil only if the root itself cannot be read or ctx is done.
func (s *Scanner) Scan(ctx context.Context) ([]string, error) {
	files := make([]string, 0, 64)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == s.root {
				return walkErr
			}
			scanFailures.Inc()
			s.logger.Warn("skipping unreadable path",
				slog.String("path", path),
				slog.String("error", walkErr.Error()))
			return nil
		}
		if path == s.root {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == vcsDir || s.IgnoresDir(rel) {
				dirsPruned.Inc()
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case s.ignoresFile(rel):
			filesSeen.WithLabelValues(outcomeIgnored).Inc()
		case !s.cfg.HasExtension(d.Name()):
			filesSeen.WithLabelValues(outcomeFiltered).Inc()
		default:
			filesSeen.WithLabelValues(outcomeAccepted).Inc()
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}

	s.logger.Debug("scan complete",
		slog.String("root", s.root),
		slog.Int("files", len(files)))
	return files, nil
}

// IgnoresDir reports whether the directory at the slash-separated relative
// path rel is pruned by the ignore rules.
func (s *Scanner) IgnoresDir(rel string) bool {
	if filepath.Base(rel) == vcsDir {
		return true
	}
	if s.matcher == nil {
		return false
	}
	return s.matcher.MatchesPath(rel + "/")
}

// Accepts reports whether the file at the slash-separated relative path rel
// would be returned by Scan, ignoring the state of its parent directories.
func (s *Scanner) Accepts(rel string) bool {
	return !s.ignoresFile(rel) && s.cfg.HasExtension(rel)
}

func (s *Scanner) ignoresFile(rel string) bool {
	if s.matcher == nil {
		return false
	}
	return s.matcher.MatchesPath(rel)
}
