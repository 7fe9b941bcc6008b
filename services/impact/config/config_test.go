// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "impact.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.Contains(t, cfg.Extensions, ".tsx")
	assert.Equal(t, ".ts", cfg.ImportSuffixes[0])
	assert.Equal(t, "/index.jsx", cfg.ImportSuffixes[len(cfg.ImportSuffixes)-1])
	assert.NotNil(t, cfg.PathAliases)
	assert.GreaterOrEqual(t, cfg.ParseWorkers, 1)
	require.NoError(t, cfg.Validate())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
max_depth: 2
path_aliases:
  "@/": "web/src/"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.MaxDepth)
	assert.Equal(t, "web/src/", cfg.PathAliases["@/"])
	assert.Equal(t, Default().Extensions, cfg.Extensions)
	assert.Equal(t, Default().ImportSuffixes, cfg.ImportSuffixes)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative depth", "max_depth: -1\n"},
		{"extension without dot", "extensions: [\"js\"]\n"},
		{"zero workers", "parse_workers: 0\n"},
		{"empty suffix", "import_resolution_suffixes: [\"\"]\n"},
		{"empty alias prefix", "path_aliases:\n  \"\": \"src/\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "max_depth: [oops\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_TooLarge(t *testing.T) {
	path := writeConfig(t, "# "+strings.Repeat("x", MaxConfigFileSize)+"\n")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrConfigTooLarge)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSortedAliases(t *testing.T) {
	cfg := Default()
	cfg.PathAliases = map[string]string{
		"@/":       "src/",
		"@app/ui/": "packages/ui/",
		"@app/":    "packages/app/",
		"~/":       "lib/",
	}

	aliases := cfg.SortedAliases()
	prefixes := make([]string, len(aliases))
	for i, a := range aliases {
		prefixes[i] = a.Prefix
	}

	assert.Equal(t, []string{"@app/ui/", "@app/", "@/", "~/"}, prefixes)
}

func TestHasExtension(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.HasExtension("a/b/c.tsx"))
	assert.True(t, cfg.HasExtension("index.js"))
	assert.False(t, cfg.HasExtension("README.md"))
	assert.False(t, cfg.HasExtension("main.go"))
}
