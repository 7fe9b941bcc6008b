// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"path"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies a tree-sitter grammar.
type Language string

// Supported grammars.
const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageTSX        Language = "tsx"
)

var extensionLanguages = map[string]Language{
	".js":  LanguageJavaScript,
	".jsx": LanguageJavaScript,
	".mjs": LanguageJavaScript,
	".cjs": LanguageJavaScript,
	".ts":  LanguageTypeScript,
	".mts": LanguageTypeScript,
	".cts": LanguageTypeScript,
	".tsx": LanguageTSX,
}

// LanguageForPath returns the grammar for a file by its extension.
func LanguageForPath(filename string) (Language, bool) {
	lang, ok := extensionLanguages[strings.ToLower(path.Ext(filename))]
	return lang, ok
}

func (l Language) grammar() *sitter.Language {
	switch l {
	case LanguageJavaScript:
		return javascript.GetLanguage()
	case LanguageTypeScript:
		return typescript.GetLanguage()
	case LanguageTSX:
		return tsx.GetLanguage()
	default:
		return nil
	}
}

// parserCache hands out tree-sitter parsers per grammar.
//
// A sitter.Parser is not safe for concurrent use, so each grammar gets a
// pool created on first use. The cache belongs to one Parser; two Parsers
// never share tree-sitter state.
type parserCache struct {
	mu    sync.Mutex
	pools map[Language]*sync.Pool
}

func newParserCache() *parserCache {
	return &parserCache{pools: make(map[Language]*sync.Pool)}
}

func (c *parserCache) pool(lang Language) *sync.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pools[lang]
	if !ok {
		grammar := lang.grammar()
		p = &sync.Pool{
			New: func() any {
				sp := sitter.NewParser()
				sp.SetLanguage(grammar)
				return sp
			},
		}
		c.pools[lang] = p
	}
	return p
}

func (c *parserCache) acquire(lang Language) *sitter.Parser {
	return c.pool(lang).Get().(*sitter.Parser)
}

func (c *parserCache) release(lang Language, sp *sitter.Parser) {
	c.pool(lang).Put(sp)
}

// languages returns the grammars created so far.
func (c *parserCache) languages() []Language {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Language, 0, len(c.pools))
	for lang := range c.pools {
		out = append(out, lang)
	}
	return out
}
