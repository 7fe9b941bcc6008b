// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyzer

// CallerInfo describes one entity that calls the analyzed entity, directly
// or transitively.
type CallerInfo struct {
	File      string `json:"file" yaml:"file"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
	Name      string `json:"name" yaml:"name"`
	Source    string `json:"source_text" yaml:"source_text"`
}

// EntityImpact is the blast radius of one entity.
type EntityImpact struct {
	EntityName string `json:"entity_name" yaml:"entity_name"`
	File       string `json:"file" yaml:"file"`

	// DirectCallers are the distinct immediate callers.
	DirectCallers []CallerInfo `json:"direct_callers" yaml:"direct_callers"`

	// AllCallers are the distinct callers within the depth bound, in
	// breadth-first discovery order. DirectCallers is a prefix of it.
	AllCallers []CallerInfo `json:"all_callers" yaml:"all_callers"`

	// AffectedFiles are the sorted distinct files of AllCallers.
	AffectedFiles []string `json:"affected_files" yaml:"affected_files"`
}

// HasCallers reports whether anything depends on the entity.
func (e *EntityImpact) HasCallers() bool {
	return len(e.AllCallers) > 0
}
