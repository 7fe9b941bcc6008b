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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/naknumberone/smart-code-review/services/impact"
	"github.com/naknumberone/smart-code-review/services/impact/analyzer"
	"github.com/naknumberone/smart-code-review/services/impact/changeset"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// report is the document written by analyze and watch.
type report struct {
	APIVersion    string                             `json:"api_version" yaml:"api_version"`
	RunID         string                             `json:"run_id" yaml:"run_id"`
	Root          string                             `json:"root" yaml:"root"`
	Changed       []impact.ChangedFile               `json:"changed" yaml:"changed"`
	Diff          []changeset.FileEntities           `json:"diff,omitempty" yaml:"diff,omitempty"`
	Impacts       map[string][]analyzer.EntityImpact `json:"impacts" yaml:"impacts"`
	AffectedFiles []string                           `json:"affected_files" yaml:"affected_files"`
	Stats         impact.Stats                       `json:"stats" yaml:"stats"`
}

func newReport(root string, changed []impact.ChangedFile, diff []changeset.FileEntities, result *impact.Result) *report {
	if changed == nil {
		changed = []impact.ChangedFile{}
	}
	impacts := result.Impacts
	if impacts == nil {
		impacts = map[string][]analyzer.EntityImpact{}
	}
	return &report{
		APIVersion:    "1.0",
		RunID:         result.RunID,
		Root:          root,
		Changed:       changed,
		Diff:          diff,
		Impacts:       impacts,
		AffectedFiles: result.AffectedFiles(),
		Stats:         result.Stats,
	}
}

func (r *report) hasImpact() bool {
	return len(r.AffectedFiles) > 0
}

// resolveFormat validates an explicit format or picks one for w.
func resolveFormat(format string, w io.Writer) (string, error) {
	switch strings.ToLower(format) {
	case formatText, formatJSON, formatYAML:
		return strings.ToLower(format), nil
	case "":
		if f, ok := w.(interface{ Fd() uintptr }); ok {
			if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
				return formatText, nil
			}
		}
		return formatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q: want text, json or yaml", format)
	}
}

func writeReport(w io.Writer, format string, r *report) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, renderText(w, r))
		return err
	}
}

type textStyles struct {
	title, file, entity, muted, warn, box lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	return textStyles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7")),
		file:   r.NewStyle().Foreground(lipgloss.Color("#20B9B4")),
		entity: r.NewStyle().Bold(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("#2C4A54")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("#F4D03F")),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#16858E")).
			Padding(0, 1),
	}
}

func renderText(w io.Writer, r *report) string {
	s := newTextStyles(w)
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n\n", s.title.Render("Impact report"), s.muted.Render("run "+r.RunID))

	if len(r.Impacts) == 0 {
		b.WriteString(s.muted.Render("No changed entities found in the call graph."))
		b.WriteString("\n")
	}

	res := impact.Result{Impacts: r.Impacts}
	for _, path := range res.ChangedPaths() {
		b.WriteString(s.file.Render(path))
		b.WriteString("\n")
		for _, imp := range r.Impacts[path] {
			counts := fmt.Sprintf("%d direct, %d total", len(imp.DirectCallers), len(imp.AllCallers))
			fmt.Fprintf(&b, "  %s  %s\n", s.entity.Render(imp.EntityName), s.muted.Render(counts))
			if !imp.HasCallers() {
				fmt.Fprintf(&b, "    %s\n", s.muted.Render("no callers"))
				continue
			}
			for _, c := range imp.AllCallers {
				fmt.Fprintf(&b, "    → %s:%d %s\n", c.File, c.StartLine, c.Name)
			}
			fmt.Fprintf(&b, "    %s %s\n", s.warn.Render("affected:"), strings.Join(imp.AffectedFiles, ", "))
		}
		b.WriteString("\n")
	}

	summary := fmt.Sprintf("%d files scanned, %d parsed, %d failed\n%d entities, %d call edges, %d unresolved calls\n%d affected files in %dms",
		r.Stats.FilesScanned, r.Stats.FilesParsed, r.Stats.FilesFailed,
		r.Stats.Nodes, r.Stats.Edges, r.Stats.UnresolvedCalls,
		len(r.AffectedFiles), r.Stats.DurationMs)
	b.WriteString(s.box.Render(summary))
	b.WriteString("\n")
	return b.String()
}
