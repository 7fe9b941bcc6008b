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
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naknumberone/smart-code-review/services/impact/config"
)

const jsSource = `import { bar } from './b';
import React from 'react';
import util from 'app/util';

function foo() {
  bar();
  obj.save();
  return helper(1);
}

const arrow = () => foo();

class Widget {
  render() {
    return <Button onClick={foo} />;
  }
}
`

func entityByName(t *testing.T, result *ParseResult, name string) FunctionEntity {
	t.Helper()
	for _, fn := range result.Functions {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("entity %q not found", name)
	return FunctionEntity{}
}

func entityNames(result *ParseResult) []string {
	names := make([]string, len(result.Functions))
	for i, fn := range result.Functions {
		names[i] = fn.Name
	}
	return names
}

func TestParse_JavaScriptEntities(t *testing.T) {
	p := NewParser(config.Default())

	result, err := p.Parse(context.Background(), []byte(jsSource), "src/a.js")
	require.NoError(t, err)

	assert.Equal(t, "src/a.js", result.Path)
	assert.Equal(t, LanguageJavaScript, result.Language)
	assert.Equal(t, []string{"foo", "arrow", "Widget", "render"}, entityNames(result))

	foo := entityByName(t, result, "foo")
	assert.Equal(t, 5, foo.StartLine)
	assert.Equal(t, 9, foo.EndLine)
	assert.Equal(t, []string{"bar", "helper", "save"}, foo.Calls)
	assert.True(t, strings.HasPrefix(foo.Source, "function foo()"))

	arrow := entityByName(t, result, "arrow")
	assert.Equal(t, 11, arrow.StartLine)
	assert.Equal(t, []string{"foo"}, arrow.Calls)

	render := entityByName(t, result, "render")
	assert.Equal(t, []string{"Button"}, render.Calls)

	widget := entityByName(t, result, "Widget")
	assert.Equal(t, 13, widget.StartLine)
	assert.Equal(t, 17, widget.EndLine)
	assert.Contains(t, widget.Calls, "Button")
}

func TestParse_ImportClassification(t *testing.T) {
	tests := []struct {
		name    string
		aliases map[string]string
		want    []ImportEdge
	}{
		{
			name:    "no aliases",
			aliases: map[string]string{},
			want: []ImportEdge{
				{Source: "./b", External: false},
				{Source: "react", External: true},
				{Source: "app/util", External: true},
			},
		},
		{
			name:    "alias prefix is internal",
			aliases: map[string]string{"app/": "web/src/"},
			want: []ImportEdge{
				{Source: "./b", External: false},
				{Source: "react", External: true},
				{Source: "app/util", External: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.PathAliases = tt.aliases

			result, err := NewParser(cfg).Parse(context.Background(), []byte(jsSource), "a.js")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Imports)
			for _, imp := range result.Imports {
				assert.Equal(t, !imp.External, imp.Internal(), imp.Source)
			}
		})
	}
}

func TestParse_TypeScriptAndTSX(t *testing.T) {
	p := NewParser(config.Default())

	ts := `export class Service {
  save(item: Item): void {
    this.repo.save(item);
    validate(item);
  }
}

export const load = function (id: string) {
  return fetchItem(id);
};
`
	result, err := p.Parse(context.Background(), []byte(ts), "svc.ts")
	require.NoError(t, err)
	assert.Equal(t, LanguageTypeScript, result.Language)
	assert.Equal(t, []string{"Service", "save", "load"}, entityNames(result))
	assert.Equal(t, []string{"save", "validate"}, entityByName(t, result, "save").Calls)
	assert.Equal(t, []string{"fetchItem"}, entityByName(t, result, "load").Calls)

	tsx := `export function Page() {
  return (
    <Layout>
      <Nav />
    </Layout>
  );
}
`
	result, err = p.Parse(context.Background(), []byte(tsx), "Page.tsx")
	require.NoError(t, err)
	assert.Equal(t, LanguageTSX, result.Language)
	assert.Equal(t, []string{"Layout", "Nav"}, entityByName(t, result, "Page").Calls)
}

func TestParse_UnsupportedExtension(t *testing.T) {
	p := NewParser(config.Default())

	result, err := p.Parse(context.Background(), []byte("def foo(): pass"), "main.py")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Functions)
	assert.Empty(t, result.Imports)
	assert.Empty(t, p.cache.languages())
}

func TestParse_InputLimits(t *testing.T) {
	p := NewParser(config.Default(), WithMaxFileSize(16))

	_, err := p.Parse(context.Background(), []byte(strings.Repeat("a", 17)), "big.js")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "big.js", parseErr.FilePath)

	_, err = p.Parse(context.Background(), []byte{0xff, 0xfe}, "bin.js")
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestParse_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser(config.Default()).Parse(ctx, []byte(jsSource), "a.js")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse_DepthCap(t *testing.T) {
	src := []byte("function outer() { function inner() {} }\n")

	// program(0) > function_declaration(1) > statement_block(2) > inner(3)
	result, err := NewParser(config.Default()).Parse(context.Background(), src, "a.js")
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, entityNames(result))

	result, err = NewParser(config.Default(), WithMaxTreeDepth(2)).Parse(context.Background(), src, "a.js")
	require.NoError(t, err)
	assert.Equal(t, []string{"outer"}, entityNames(result))
}

func TestParse_DeeplyNestedInputDoesNotOverflow(t *testing.T) {
	depth := 1000
	src := "const f = () => " + strings.Repeat("(", depth) + "g()" + strings.Repeat(")", depth) + ";\n"

	p := NewParser(config.Default(), WithMaxTreeDepth(64))
	result, err := p.Parse(context.Background(), []byte(src), "deep.js")
	require.NoError(t, err)
	require.Equal(t, []string{"f"}, entityNames(result))
	assert.Empty(t, result.Functions[0].Calls)
}

func TestParse_Concurrent(t *testing.T) {
	p := NewParser(config.Default())

	want, err := p.Parse(context.Background(), []byte(jsSource), "a.js")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*ParseResult, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Parse(context.Background(), []byte(jsSource), "a.js")
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
	assert.Equal(t, []Language{LanguageJavaScript}, p.cache.languages())
}

func TestParse_CancelledRunsLeavePoolHealthy(t *testing.T) {
	p := NewParser(config.Default())

	want, err := p.Parse(context.Background(), []byte(jsSource), "a.js")
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, err := p.Parse(ctx, []byte(jsSource), "a.js")
			if err != nil {
				assert.ErrorIs(t, err, context.Canceled)
			}
		}()
		cancel()
		<-done

		got, err := p.Parse(context.Background(), []byte(jsSource), "a.js")
		require.NoError(t, err, "iteration %d", i)
		require.Equal(t, want, got)
	}
}

func TestParsersShareNoState(t *testing.T) {
	a := NewParser(config.Default())
	b := NewParser(config.Default())

	_, err := a.Parse(context.Background(), []byte("function x() {}"), "x.ts")
	require.NoError(t, err)

	assert.Equal(t, []Language{LanguageTypeScript}, a.cache.languages())
	assert.Empty(t, b.cache.languages())
}

func TestTopLevelDeclarations(t *testing.T) {
	src := `import x from './x';

export function alpha() {}
export const beta = () => 1, gamma = 2;
function delta() {}
const eps = 3;
export { alpha as a };
class Zeta {}
`
	decls, err := NewParser(config.Default()).TopLevelDeclarations(context.Background(), []byte(src), "mod.ts")
	require.NoError(t, err)
	require.Len(t, decls, 6)

	assert.Equal(t, Declaration{
		Kind: "export_statement", Names: []string{"alpha"}, Exported: true,
		StartLine: 3, EndLine: 3, Source: "export function alpha() {}",
	}, decls[0])
	assert.Equal(t, []string{"beta", "gamma"}, decls[1].Names)
	assert.True(t, decls[1].Exported)
	assert.Equal(t, []string{"delta"}, decls[2].Names)
	assert.False(t, decls[2].Exported)
	assert.Equal(t, "lexical_declaration", decls[3].Kind)
	assert.Equal(t, []string{"eps"}, decls[3].Names)
	assert.Empty(t, decls[4].Names)
	assert.Equal(t, []string{"Zeta"}, decls[5].Names)
	assert.Equal(t, 8, decls[5].StartLine)

	decls, err = NewParser(config.Default()).TopLevelDeclarations(context.Background(), []byte("x"), "README.md")
	require.NoError(t, err)
	assert.Nil(t, decls)
}

func TestDeclarationOverlaps(t *testing.T) {
	d := Declaration{StartLine: 10, EndLine: 12}

	assert.True(t, d.Overlaps(map[int]struct{}{12: {}}))
	assert.True(t, d.Overlaps(map[int]struct{}{1: {}, 10: {}}))
	assert.False(t, d.Overlaps(map[int]struct{}{9: {}, 13: {}}))
	assert.False(t, d.Overlaps(nil))
}

func TestLanguageForPath(t *testing.T) {
	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"a.js", LanguageJavaScript, true},
		{"a.jsx", LanguageJavaScript, true},
		{"a.mjs", LanguageJavaScript, true},
		{"dir/a.ts", LanguageTypeScript, true},
		{"types.d.ts", LanguageTypeScript, true},
		{"App.tsx", LanguageTSX, true},
		{"App.TSX", LanguageTSX, true},
		{"main.go", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		got, ok := LanguageForPath(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}
