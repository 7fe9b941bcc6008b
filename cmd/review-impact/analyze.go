// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/naknumberone/smart-code-review/services/impact"
	"github.com/naknumberone/smart-code-review/services/impact/changeset"
	"github.com/naknumberone/smart-code-review/services/impact/config"
)

var (
	errNoChanges   = errors.New("nothing to analyze: pass --diff or --entity")
	errImpactFound = errors.New("changed entities have callers")
)

// analyzeOptions are the flags shared by analyze and watch.
type analyzeOptions struct {
	root         string
	configPath   string
	diffPath     string
	entities     []string
	maxDepth     int
	format       string
	failOnImpact bool
}

func (o *analyzeOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.root, "root", ".", "repository root")
	f.StringVarP(&o.configPath, "config", "c", "", "YAML config file")
	f.StringVar(&o.diffPath, "diff", "", "unified diff file, or - for stdin")
	f.StringArrayVarP(&o.entities, "entity", "e", nil, "changed entity as path:name (repeatable)")
	f.IntVar(&o.maxDepth, "max-depth", config.DefaultMaxDepth, "maximum caller depth")
	f.StringVarP(&o.format, "format", "o", "", "output format: text, json or yaml (default: text on a terminal, json otherwise)")
	f.BoolVar(&o.failOnImpact, "fail-on-impact", false, "exit with status 1 when any changed entity has callers")
}

func newAnalyzeCmd(g *globalOptions) *cobra.Command {
	o := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report the callers of changed entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, g, o)
		},
	}
	o.bind(cmd)
	return cmd
}

func runAnalyze(cmd *cobra.Command, g *globalOptions, o *analyzeOptions) error {
	format, err := resolveFormat(o.format, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	svc, err := o.newService(cmd, g)
	if err != nil {
		return err
	}
	diffText, err := o.readDiff(cmd.InOrStdin())
	if err != nil {
		return err
	}

	rep, err := o.analyze(cmd.Context(), g, svc, diffText)
	if err != nil {
		return err
	}
	if err := writeReport(cmd.OutOrStdout(), format, rep); err != nil {
		return err
	}
	if o.failOnImpact && rep.hasImpact() {
		return errImpactFound
	}
	return nil
}

// loadConfig reads --config when given and applies flag overrides.
func (o *analyzeOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("max-depth") {
		cfg.MaxDepth = o.maxDepth
	}
	return cfg, cfg.Validate()
}

func (o *analyzeOptions) newService(cmd *cobra.Command, g *globalOptions) (*impact.Service, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return impact.NewService(o.root, cfg, impact.WithLogger(g.logger))
}

// readDiff returns the diff text once so watch mode can re-apply it.
func (o *analyzeOptions) readDiff(stdin io.Reader) (string, error) {
	switch o.diffPath {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read diff from stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(o.diffPath)
		if err != nil {
			return "", fmt.Errorf("read diff: %w", err)
		}
		return string(data), nil
	}
}

// analyze resolves the changed entities and runs one analysis.
func (o *analyzeOptions) analyze(ctx context.Context, g *globalOptions, svc *impact.Service, diffText string) (*report, error) {
	changed, err := parseEntities(o.entities)
	if err != nil {
		return nil, err
	}

	var files []changeset.FileEntities
	if o.diffPath != "" {
		files, err = changeset.FromUnifiedDiff(ctx, svc.Root(), diffText, svc.Parser(),
			changeset.WithLogger(g.logger))
		if err != nil {
			return nil, err
		}
		changed = mergeChanged(changeset.ToChangedFiles(files), changed)
	}
	if len(changed) == 0 && o.diffPath == "" {
		return nil, errNoChanges
	}

	result, err := svc.Analyze(ctx, changed)
	if err != nil {
		return nil, err
	}
	return newReport(svc.Root(), changed, files, result), nil
}

// parseEntities turns "path:name" specs into ChangedFiles, grouped by path
// in first-seen order. The name follows the last colon.
func parseEntities(specs []string) ([]impact.ChangedFile, error) {
	var out []impact.ChangedFile
	index := make(map[string]int)
	for _, spec := range specs {
		i := strings.LastIndex(spec, ":")
		if i <= 0 || i == len(spec)-1 {
			return nil, fmt.Errorf("invalid --entity %q: want path:name", spec)
		}
		path, name := spec[:i], spec[i+1:]
		if at, ok := index[path]; ok {
			out[at].Entities = append(out[at].Entities, name)
			continue
		}
		index[path] = len(out)
		out = append(out, impact.ChangedFile{Path: path, Entities: []string{name}})
	}
	return out, nil
}

// mergeChanged appends extra to base, joining entries for the same path.
func mergeChanged(base, extra []impact.ChangedFile) []impact.ChangedFile {
	index := make(map[string]int, len(base))
	for i, cf := range base {
		index[cf.Path] = i
	}
	for _, cf := range extra {
		if at, ok := index[cf.Path]; ok {
			base[at].Entities = append(base[at].Entities, cf.Entities...)
			continue
		}
		index[cf.Path] = len(base)
		base = append(base, cf)
	}
	return base
}
