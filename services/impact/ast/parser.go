// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts function entities, call names, and imports from
// JavaScript and TypeScript sources using tree-sitter.
//
// Call extraction is deliberately name-based: a member call obj.save()
// records only "save", so every receiver with a save method collapses onto
// the same callee candidate. Type-aware disambiguation is out of scope.
package ast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"go.opentelemetry.io/otel/codes"

	"github.com/naknumberone/smart-code-review/services/impact/config"
)

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMaxFileSize overrides the configured maximum file size.
func WithMaxFileSize(bytes int64) Option {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithMaxTreeDepth overrides the configured syntax tree depth cap.
func WithMaxTreeDepth(depth int) Option {
	return func(p *Parser) {
		if depth > 0 {
			p.maxTreeDepth = depth
		}
	}
}

// Parser extracts entities and imports from source files.
//
// Description:
//
//	Grammar selection is by file extension. Tree-sitter parsers are created
//	lazily per grammar and pooled inside the Parser, so separate Parser
//	instances share nothing.
//
// Thread Safety:
//
//	Parser is safe for concurrent use.
type Parser struct {
	maxFileSize   int64
	maxTreeDepth  int
	aliasPrefixes []string
	cache         *parserCache
	logger        *slog.Logger
}

// NewParser creates a Parser from cfg.
//
// Inputs:
//
//	cfg - Supplies size and depth limits and the alias prefixes used to
//	      classify imports as internal.
//	opts - Optional overrides.
//
// Outputs:
//
//	*Parser - Never nil.
func NewParser(cfg config.Config, opts ...Option) *Parser {
	aliases := cfg.SortedAliases()
	prefixes := make([]string, len(aliases))
	for i, a := range aliases {
		prefixes[i] = a.Prefix
	}

	p := &Parser{
		maxFileSize:   cfg.MaxFileSize,
		maxTreeDepth:  cfg.MaxTreeDepth,
		aliasPrefixes: prefixes,
		cache:         newParserCache(),
		logger:        slog.Default(),
	}
	if p.maxFileSize <= 0 {
		p.maxFileSize = config.DefaultMaxFileSize
	}
	if p.maxTreeDepth <= 0 {
		p.maxTreeDepth = config.DefaultMaxTreeDepth
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts function entities and imports from one file.
//
// Description:
//
//	Extracts function declarations, generator declarations, class
//	declarations, method definitions, and variable declarators initialized
//	with a function or arrow function. Each entity carries the call names
//	found in its body. Every import statement yields one ImportEdge.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	content - File content. Must be valid UTF-8.
//	filename - Path used for grammar selection and reporting.
//
// Outputs:
//
//	*ParseResult - Extracted data. Empty, with a nil error, when the
//	               extension has no grammar.
//	error - *ParseError wrapping ErrFileTooLarge, ErrInvalidContent, or
//	        ErrParseFailed; or the context error.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *Parser) Parse(ctx context.Context, content []byte, filename string) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lang, ok := LanguageForPath(filename)
	if !ok {
		return &ParseResult{Path: filename}, nil
	}

	ctx, span := startParseSpan(ctx, "Parser.Parse", lang, filename, len(content))
	defer span.End()
	start := time.Now()

	tree, err := p.parseTree(ctx, lang, content, filename)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		recordParseMetrics(ctx, lang, time.Since(start), 0, 0, false)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	w := &walker{maxDepth: p.maxTreeDepth, content: content}

	result := &ParseResult{
		Path:      filename,
		Language:  lang,
		Functions: w.functions(root),
		Imports:   w.imports(root, p.isInternal),
	}

	if w.truncated > 0 {
		p.logger.Debug("syntax tree deeper than cap, subtrees skipped",
			slog.String("file", filename),
			slog.Int("max_depth", p.maxTreeDepth),
			slog.Int("skipped", w.truncated))
	}

	recordParseMetrics(ctx, lang, time.Since(start), len(result.Functions), w.truncated, true)
	return result, nil
}

// TopLevelDeclarations returns the statements at the root of a file that
// declare something: export statements, function, generator and class
// declarations, and lexical or variable declarations.
//
// Unsupported extensions return nil with a nil error.
func (p *Parser) TopLevelDeclarations(ctx context.Context, content []byte, filename string) ([]Declaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lang, ok := LanguageForPath(filename)
	if !ok {
		return nil, nil
	}

	ctx, span := startParseSpan(ctx, "Parser.TopLevelDeclarations", lang, filename, len(content))
	defer span.End()

	tree, err := p.parseTree(ctx, lang, content, filename)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	defer tree.Close()

	return topLevelDeclarations(tree.RootNode(), content), nil
}

// parseTree validates content and runs tree-sitter with a pooled parser.
func (p *Parser) parseTree(ctx context.Context, lang Language, content []byte, filename string) (*sitter.Tree, error) {
	if int64(len(content)) > p.maxFileSize {
		return nil, wrapParseError(
			fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize),
			filename)
	}
	if !utf8.Valid(content) {
		return nil, wrapParseError(
			fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent),
			filename)
	}

	// Pooled parsers never see ctx cancellation: tree-sitter keeps the
	// cancel flag set, and a flagged parser fails every later parse.
	sp := p.cache.acquire(lang)
	tree, err := sp.ParseCtx(context.WithoutCancel(ctx), nil, content)
	if err != nil {
		sp.Close()
		return nil, wrapParseError(fmt.Errorf("%w: %v", ErrParseFailed, err), filename)
	}
	p.cache.release(lang, sp)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if tree != nil {
			tree.Close()
		}
		return nil, ctxErr
	}
	if tree == nil || tree.RootNode() == nil {
		return nil, wrapParseError(fmt.Errorf("%w: no syntax tree", ErrParseFailed), filename)
	}
	return tree, nil
}

// isInternal reports whether an import specifier may resolve inside the
// repository.
func (p *Parser) isInternal(spec string) bool {
	if strings.HasPrefix(spec, ".") {
		return true
	}
	for _, prefix := range p.aliasPrefixes {
		if strings.HasPrefix(spec, prefix) {
			return true
		}
	}
	return false
}
