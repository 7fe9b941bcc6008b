// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package changeset maps a unified diff onto the root-level declarations it
// touches.
//
// The result feeds impact analysis: exported names of touched declarations
// become the changed entities of a file, and the source of every touched
// declaration is kept as local context.
package changeset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/naknumberone/smart-code-review/services/impact"
	"github.com/naknumberone/smart-code-review/services/impact/ast"
)

const devNull = "/dev/null"

// DeclarationSource lists the root-level declarations of a file.
//
// *ast.Parser satisfies it.
type DeclarationSource interface {
	TopLevelDeclarations(ctx context.Context, content []byte, filename string) ([]ast.Declaration, error)
}

// LocalCodeBlock is the source of one touched declaration.
type LocalCodeBlock struct {
	Source    string `json:"source" yaml:"source"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
}

// FileEntities describes what a diff touches in one file.
type FileEntities struct {
	// Path is relative to the repository root, forward slashes.
	Path string `json:"path" yaml:"path"`

	// TopLevel holds the sorted, distinct names of touched exported
	// declarations.
	TopLevel []string `json:"top_level" yaml:"top_level"`

	// LocalCode holds every touched declaration in file order.
	LocalCode []LocalCodeBlock `json:"local_code" yaml:"local_code"`
}

// Option configures FromUnifiedDiff.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for skipped files.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// FromUnifiedDiff reads the post-change version of every file in diffText
// from root and reports the declarations each hunk touches.
//
// # Description
//
// The changed lines of a file are the union of each hunk's new-side range.
// A root-level declaration is touched when any of its lines is changed.
// Deleted files and files in unsupported languages are skipped. Files that
// cannot be read or parsed are skipped with a warning.
//
// # Inputs
//
//   - ctx: Checked before each file.
//   - root: Repository root the diff paths are relative to.
//   - diffText: Unified diff, git style "a/" and "b/" prefixes allowed.
//   - src: Declaration lister, typically the service's *ast.Parser.
//
// # Outputs
//
//   - []FileEntities: One entry per file with changed lines, diff order.
//   - error: ErrInvalidDiff, or the context error.
func FromUnifiedDiff(ctx context.Context, root, diffText string, src DeclarationSource, opts ...Option) ([]FileEntities, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(diffText)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDiff, err)
	}

	var out []FileEntities
	for _, fd := range fileDiffs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rel, ok := newPath(fd)
		if !ok {
			continue
		}
		if _, ok := ast.LanguageForPath(rel); !ok {
			continue
		}
		lines := ChangedLines(fd)
		if len(lines) == 0 {
			continue
		}

		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			o.logger.Warn("skipping changed file",
				slog.String("file", rel),
				slog.String("error", err.Error()))
			continue
		}

		decls, err := src.TopLevelDeclarations(ctx, content, rel)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			o.logger.Warn("skipping changed file",
				slog.String("file", rel),
				slog.String("error", err.Error()))
			continue
		}

		out = append(out, touched(rel, decls, lines))
	}
	return out, nil
}

// ChangedLines returns the new-side line numbers covered by the hunks of fd.
func ChangedLines(fd *diff.FileDiff) map[int]struct{} {
	lines := make(map[int]struct{})
	for _, h := range fd.Hunks {
		start := int(h.NewStartLine)
		for l := start; l < start+int(h.NewLines); l++ {
			lines[l] = struct{}{}
		}
	}
	return lines
}

// ToChangedFiles converts diff results into impact analysis input. Files
// with no touched exported names are left out.
func ToChangedFiles(files []FileEntities) []impact.ChangedFile {
	out := make([]impact.ChangedFile, 0, len(files))
	for _, f := range files {
		if len(f.TopLevel) == 0 {
			continue
		}
		out = append(out, impact.ChangedFile{
			Path:     f.Path,
			Entities: append([]string(nil), f.TopLevel...),
		})
	}
	return out
}

// newPath returns the post-change path of fd. False for deletions.
func newPath(fd *diff.FileDiff) (string, bool) {
	name := fd.NewName
	if name == "" || name == devNull {
		return "", false
	}
	name = strings.TrimPrefix(name, "b/")
	return filepath.ToSlash(filepath.Clean(name)), true
}

func touched(rel string, decls []ast.Declaration, lines map[int]struct{}) FileEntities {
	fe := FileEntities{
		Path:      rel,
		TopLevel:  []string{},
		LocalCode: []LocalCodeBlock{},
	}
	names := make(map[string]struct{})
	for _, d := range decls {
		if !d.Overlaps(lines) {
			continue
		}
		fe.LocalCode = append(fe.LocalCode, LocalCodeBlock{
			Source:    d.Source,
			StartLine: d.StartLine,
			EndLine:   d.EndLine,
		})
		if !d.Exported {
			continue
		}
		for _, n := range d.Names {
			names[n] = struct{}{}
		}
	}
	for n := range names {
		fe.TopLevel = append(fe.TopLevel, n)
	}
	sort.Strings(fe.TopLevel)
	return fe
}
