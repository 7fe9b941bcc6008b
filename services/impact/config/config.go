// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides configuration for change impact analysis.
//
// A Config is a plain value: every component of the impact pipeline reads
// the fields it needs from the same Config and never mutates it. Defaults
// are returned by Default(); Load() overlays a YAML file on top of them.
//
// Thread Safety:
//
//	Config values are immutable once handed to a component and may be
//	shared freely between goroutines.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	// DefaultMaxDepth is the default caller traversal depth.
	DefaultMaxDepth = 5

	// DefaultMaxFileSize is the largest source file the parser accepts (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// DefaultMaxTreeDepth bounds syntax tree traversal depth.
	DefaultMaxTreeDepth = 4096

	// MaxConfigFileSize is the largest YAML config file Load accepts (1MB).
	MaxConfigFileSize = 1024 * 1024
)

// Sentinel errors for configuration loading.
var (
	// ErrConfigTooLarge is returned when a config file exceeds MaxConfigFileSize.
	ErrConfigTooLarge = errors.New("config file too large")

	// ErrInvalidConfig is returned when a config fails validation.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config configures the impact pipeline.
type Config struct {
	// Extensions is the allow-list of file extensions to scan, with the dot.
	Extensions []string `yaml:"extensions" validate:"required,min=1,dive,startswith=."`

	// MaxDepth is the maximum caller distance reported by the analyzer.
	// Zero reports no callers at all.
	MaxDepth int `yaml:"max_depth" validate:"gte=0"`

	// PathAliases maps a logical import prefix to a physical directory
	// prefix, e.g. "@/" -> "src/".
	PathAliases map[string]string `yaml:"path_aliases"`

	// ImportSuffixes are tried in order when resolving an import specifier
	// to a file that owns graph nodes.
	ImportSuffixes []string `yaml:"import_resolution_suffixes" validate:"dive,required"`

	// ParseWorkers bounds the number of files parsed concurrently.
	ParseWorkers int `yaml:"parse_workers" validate:"gte=1"`

	// MaxFileSize is the largest file, in bytes, the parser accepts.
	MaxFileSize int64 `yaml:"max_file_size" validate:"gt=0"`

	// MaxTreeDepth bounds how deep the parser walks a syntax tree.
	MaxTreeDepth int `yaml:"max_tree_depth" validate:"gt=0"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Extensions:  []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"},
		MaxDepth:    DefaultMaxDepth,
		PathAliases: map[string]string{},
		ImportSuffixes: []string{
			".ts",
			".tsx",
			".js",
			".jsx",
			"/index.ts",
			"/index.tsx",
			"/index.js",
			"/index.jsx",
		},
		ParseWorkers: runtime.NumCPU(),
		MaxFileSize:  DefaultMaxFileSize,
		MaxTreeDepth: DefaultMaxTreeDepth,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the config for invalid values.
//
// Outputs:
//
//	error - Wraps ErrInvalidConfig with the failing fields, nil if valid.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for prefix := range c.PathAliases {
		if prefix == "" {
			return fmt.Errorf("%w: path alias with empty prefix", ErrInvalidConfig)
		}
	}
	return nil
}

// Load reads a YAML config file and overlays it on Default().
//
// Description:
//
//	Keys missing from the file keep their default values. Lists and maps
//	present in the file replace the defaults entirely. The result is
//	validated before it is returned.
//
// Inputs:
//
//	path - Path to the YAML file.
//
// Outputs:
//
//	Config - The merged configuration.
//	error - Non-nil if the file cannot be read, is too large, is not valid
//	        YAML, or fails validation.
func Load(path string) (Config, error) {
	cfg := Default()

	info, err := os.Stat(path)
	if err != nil {
		return cfg, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return cfg, fmt.Errorf("%w: %d bytes", ErrConfigTooLarge, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.PathAliases == nil {
		cfg.PathAliases = map[string]string{}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Alias is one logical-to-physical import prefix rewrite.
type Alias struct {
	Prefix string
	Target string
}

// SortedAliases returns the alias table in resolution order.
//
// Longer prefixes come first so that "@app/ui/" wins over "@app/"; equal
// lengths are ordered lexically. The order is stable across runs.
func (c Config) SortedAliases() []Alias {
	aliases := make([]Alias, 0, len(c.PathAliases))
	for prefix, target := range c.PathAliases {
		aliases = append(aliases, Alias{Prefix: prefix, Target: target})
	}
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i].Prefix) != len(aliases[j].Prefix) {
			return len(aliases[i].Prefix) > len(aliases[j].Prefix)
		}
		return aliases[i].Prefix < aliases[j].Prefix
	})
	return aliases
}

// HasExtension reports whether name ends with an allow-listed extension.
func (c Config) HasExtension(name string) bool {
	for _, ext := range c.Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
