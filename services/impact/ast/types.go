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

// FunctionEntity is a named function, class, or method extracted from a file.
type FunctionEntity struct {
	// Name is the declared identifier.
	Name string

	// StartLine and EndLine are 1-based and inclusive.
	StartLine int
	EndLine   int

	// Source is the verbatim text of the declaration.
	Source string

	// Calls holds the sorted, distinct call-target names found in the body.
	// Member calls contribute only the property name, so obj.save() and
	// other.save() both yield "save".
	Calls []string
}

// ImportEdge is one import statement of a file.
type ImportEdge struct {
	// Source is the module specifier with quotes removed.
	Source string

	// External is false when the specifier is relative or starts with a
	// configured alias prefix.
	External bool
}

// Internal reports whether the import may resolve to a file in the repository.
func (e ImportEdge) Internal() bool {
	return !e.External
}

// ParseResult holds everything extracted from one file.
type ParseResult struct {
	Path      string
	Language  Language
	Functions []FunctionEntity
	Imports   []ImportEdge
}

// Declaration is a statement at the root of a file.
type Declaration struct {
	// Kind is the tree-sitter node type, e.g. "export_statement".
	Kind string

	// Names are the identifiers the statement declares. Empty for statements
	// such as "export { a, b }".
	Names []string

	// Exported is true for export statements.
	Exported bool

	StartLine int
	EndLine   int
	Source    string
}

// Overlaps reports whether any line in lines falls inside the declaration.
func (d Declaration) Overlaps(lines map[int]struct{}) bool {
	for line := d.StartLine; line <= d.EndLine; line++ {
		if _, ok := lines[line]; ok {
			return true
		}
	}
	return false
}
