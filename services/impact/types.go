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

import "github.com/naknumberone/smart-code-review/services/impact/analyzer"

// ChangedFile names the changed top-level entities of one file.
type ChangedFile struct {
	// Path is slash-separated and relative to the repository root.
	Path string `json:"path" yaml:"path"`

	// Entities are the entity names to analyze.
	Entities []string `json:"entities" yaml:"entities"`
}

// Stats summarizes one run.
type Stats struct {
	FilesScanned    int   `json:"files_scanned" yaml:"files_scanned"`
	FilesParsed     int   `json:"files_parsed" yaml:"files_parsed"`
	FilesFailed     int   `json:"files_failed" yaml:"files_failed"`
	Nodes           int   `json:"nodes" yaml:"nodes"`
	Edges           int   `json:"edges" yaml:"edges"`
	UnresolvedCalls int   `json:"unresolved_calls" yaml:"unresolved_calls"`
	EntitiesQueried int   `json:"entities_queried" yaml:"entities_queried"`
	EntitiesMissing int   `json:"entities_missing" yaml:"entities_missing"`
	DurationMs      int64 `json:"duration_ms" yaml:"duration_ms"`
}

// Result is the outcome of one Analyze call.
type Result struct {
	// RunID identifies the run in logs and traces.
	RunID string `json:"run_id" yaml:"run_id"`

	// Impacts maps a changed file to the impacts of its entities that
	// exist in the graph. Files whose entities were all absent are omitted.
	Impacts map[string][]analyzer.EntityImpact `json:"impacts" yaml:"impacts"`

	Stats Stats `json:"stats" yaml:"stats"`
}

// AffectedFiles returns the sorted union of affected files across all impacts.
func (r *Result) AffectedFiles() []string {
	seen := make(map[string]struct{})
	for _, impacts := range r.Impacts {
		for _, imp := range impacts {
			for _, f := range imp.AffectedFiles {
				seen[f] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// ChangedPaths returns the files with impacts, sorted.
func (r *Result) ChangedPaths() []string {
	seen := make(map[string]struct{}, len(r.Impacts))
	for path := range r.Impacts {
		seen[path] = struct{}{}
	}
	return sortedKeys(seen)
}
