// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package impact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naknumberone/smart-code-review/services/impact/analyzer"
	"github.com/naknumberone/smart-code-review/services/impact/config"
	"github.com/naknumberone/smart-code-review/services/impact/scanner"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func sampleRepo(t *testing.T) string {
	return writeRepo(t, map[string]string{
		".gitignore": "node_modules/\n",
		"a.js": `export function foo() {
  return bar();
}

function bar() {
  return 1;
}
`,
		"b.js": `import { foo } from './a';

export function baz() {
  return foo();
}
`,
		"c.ts": `import { baz } from './b';

export const qux = () => baz();
`,
		"node_modules/lib/index.js": "export function foo() { return 0; }\n",
		"d.js":                      "\xff\xfe not utf8",
	})
}

func callerNames(infos []analyzer.CallerInfo) []string {
	out := make([]string, len(infos))
	for i, c := range infos {
		out[i] = c.File + ":" + c.Name
	}
	return out
}

func TestAnalyze_DepthOneScenario(t *testing.T) {
	cfg := config.Default()
	cfg.MaxDepth = 1

	svc, err := NewService(sampleRepo(t), cfg)
	require.NoError(t, err)

	result, err := svc.Analyze(context.Background(), []ChangedFile{
		{Path: "a.js", Entities: []string{"foo"}},
	})
	require.NoError(t, err)

	require.Contains(t, result.Impacts, "a.js")
	impacts := result.Impacts["a.js"]
	require.Len(t, impacts, 1)

	assert.Equal(t, "foo", impacts[0].EntityName)
	assert.Equal(t, []string{"b.js:baz"}, callerNames(impacts[0].DirectCallers))
	assert.Equal(t, []string{"b.js:baz"}, callerNames(impacts[0].AllCallers))
	assert.Equal(t, []string{"b.js"}, impacts[0].AffectedFiles)
	assert.NotEmpty(t, result.RunID)
}

func TestAnalyze_TransitiveCallers(t *testing.T) {
	svc, err := NewService(sampleRepo(t), config.Default())
	require.NoError(t, err)

	result, err := svc.Analyze(context.Background(), []ChangedFile{
		{Path: "a.js", Entities: []string{"bar", "foo", "foo"}},
		{Path: "c.ts", Entities: []string{"qux"}},
		{Path: "missing.js", Entities: []string{"ghost"}},
	})
	require.NoError(t, err)

	impacts := result.Impacts["a.js"]
	require.Len(t, impacts, 2)

	bar, foo := impacts[0], impacts[1]
	assert.Equal(t, []string{"a.js:foo"}, callerNames(bar.DirectCallers))
	assert.Equal(t, []string{"a.js:foo", "b.js:baz", "c.ts:qux"}, callerNames(bar.AllCallers))
	assert.Equal(t, []string{"a.js", "b.js", "c.ts"}, bar.AffectedFiles)

	assert.Equal(t, []string{"b.js:baz", "c.ts:qux"}, callerNames(foo.AllCallers))
	assert.Equal(t, 3, foo.AllCallers[1].StartLine)
	assert.Equal(t, "qux = () => baz()", foo.AllCallers[1].Source)

	require.Contains(t, result.Impacts, "c.ts")
	assert.Empty(t, result.Impacts["c.ts"][0].AllCallers)
	assert.NotContains(t, result.Impacts, "missing.js")

	assert.Equal(t, []string{"a.js", "c.ts"}, result.ChangedPaths())
	assert.Equal(t, []string{"a.js", "b.js", "c.ts"}, result.AffectedFiles())

	stats := result.Stats
	assert.Equal(t, 4, stats.FilesScanned)
	assert.Equal(t, 3, stats.FilesParsed)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 4, stats.Nodes)
	assert.Equal(t, 3, stats.Edges)
	assert.Equal(t, 4, stats.EntitiesQueried)
	assert.Equal(t, 1, stats.EntitiesMissing)
}

func TestAnalyze_RunsAreIndependent(t *testing.T) {
	root := sampleRepo(t)
	svc, err := NewService(root, config.Default())
	require.NoError(t, err)

	changed := []ChangedFile{{Path: "a.js", Entities: []string{"foo"}}}
	first, err := svc.Analyze(context.Background(), changed)
	require.NoError(t, err)
	assert.Len(t, first.Impacts["a.js"][0].AllCallers, 2)

	require.NoError(t, os.Remove(filepath.Join(root, "c.ts")))

	second, err := svc.Analyze(context.Background(), changed)
	require.NoError(t, err)
	assert.Len(t, second.Impacts["a.js"][0].AllCallers, 1)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestAnalyze_IgnoreLinesOption(t *testing.T) {
	root := sampleRepo(t)
	svc, err := NewService(root, config.Default(), WithIgnoreLines("b.js"))
	require.NoError(t, err)

	result, err := svc.Analyze(context.Background(), []ChangedFile{
		{Path: "a.js", Entities: []string{"foo"}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Impacts["a.js"][0].AllCallers)
}

func TestAnalyze_Cancelled(t *testing.T) {
	svc, err := NewService(sampleRepo(t), config.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Analyze(ctx, []ChangedFile{{Path: "a.js", Entities: []string{"foo"}}})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewService_Errors(t *testing.T) {
	_, err := NewService("", config.Default())
	assert.ErrorIs(t, err, ErrEmptyRoot)

	_, err = NewService(filepath.Join(t.TempDir(), "nope"), config.Default())
	assert.ErrorIs(t, err, scanner.ErrInvalidRoot)

	cfg := config.Default()
	cfg.MaxDepth = -1
	_, err = NewService(t.TempDir(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestFileError(t *testing.T) {
	err := &FileError{Path: "a.js", Op: "read", Err: os.ErrPermission}

	assert.Equal(t, "read a.js: permission denied", err.Error())
	assert.ErrorIs(t, err, os.ErrPermission)
}
