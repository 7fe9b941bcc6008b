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
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Node types that declare an entity under a "name" field.
var namedEntityTypes = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"class_declaration":              true,
	"method_definition":              true,
}

// Initializer node types that turn a variable declarator into an entity.
var functionValueTypes = map[string]bool{
	"arrow_function":      true,
	"function_expression": true,
	"function":            true,
}

// Root-level statements reported by TopLevelDeclarations.
var declarationTypes = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"class_declaration":              true,
	"lexical_declaration":            true,
	"variable_declaration":           true,
}

// walker traverses syntax trees iteratively with a depth cap.
type walker struct {
	maxDepth  int
	content   []byte
	truncated int
}

type frame struct {
	node  *sitter.Node
	depth int
}

// walk visits root and its descendants in pre-order. visit returns false to
// skip the children of a node. Nodes deeper than maxDepth are not visited.
func (w *walker) walk(root *sitter.Node, visit func(n *sitter.Node) bool) {
	if root == nil {
		return
	}
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !visit(f.node) {
			continue
		}

		count := int(f.node.ChildCount())
		if count == 0 {
			continue
		}
		if f.depth >= w.maxDepth {
			w.truncated++
			continue
		}
		for i := count - 1; i >= 0; i-- {
			if child := f.node.Child(i); child != nil {
				stack = append(stack, frame{node: child, depth: f.depth + 1})
			}
		}
	}
}

func (w *walker) text(n *sitter.Node) string {
	return n.Content(w.content)
}

// functions extracts every entity in the tree, nested ones included.
func (w *walker) functions(root *sitter.Node) []FunctionEntity {
	var out []FunctionEntity
	w.walk(root, func(n *sitter.Node) bool {
		var name, body *sitter.Node
		switch {
		case namedEntityTypes[n.Type()]:
			name, body = n.ChildByFieldName("name"), n
		case n.Type() == "variable_declarator":
			value := n.ChildByFieldName("value")
			if value != nil && functionValueTypes[value.Type()] {
				name, body = n.ChildByFieldName("name"), value
			}
		}
		if name == nil {
			return true
		}

		entityName := w.text(name)
		if entityName == "" || strings.Contains(entityName, ":") {
			return true
		}
		out = append(out, FunctionEntity{
			Name:      entityName,
			StartLine: int(n.StartPoint().Row) + 1,
			EndLine:   int(n.EndPoint().Row) + 1,
			Source:    w.text(n),
			Calls:     w.calls(body),
		})
		return true
	})
	return out
}

// calls collects call-target names in the subtree of n.
func (w *walker) calls(n *sitter.Node) []string {
	seen := make(map[string]struct{})
	add := func(id *sitter.Node) {
		if id == nil {
			return
		}
		if name := w.text(id); name != "" {
			seen[name] = struct{}{}
		}
	}

	w.walk(n, func(n *sitter.Node) bool {
		switch n.Type() {
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil {
				break
			}
			switch fn.Type() {
			case "identifier":
				add(fn)
			case "member_expression":
				add(fn.ChildByFieldName("property"))
			}
		case "jsx_element":
			if open := firstChildOfType(n, "jsx_opening_element"); open != nil {
				add(firstChildOfType(open, "identifier"))
			}
		case "jsx_self_closing_element":
			add(firstChildOfType(n, "identifier"))
		}
		return true
	})

	calls := make([]string, 0, len(seen))
	for name := range seen {
		calls = append(calls, name)
	}
	sort.Strings(calls)
	return calls
}

// imports collects one edge per import statement, in source order.
func (w *walker) imports(root *sitter.Node, internal func(string) bool) []ImportEdge {
	var out []ImportEdge
	w.walk(root, func(n *sitter.Node) bool {
		if n.Type() != "import_statement" {
			return true
		}
		if source := n.ChildByFieldName("source"); source != nil {
			spec := strings.Trim(w.text(source), "\"'`")
			if spec != "" {
				out = append(out, ImportEdge{Source: spec, External: !internal(spec)})
			}
		}
		return false
	})
	return out
}

// topLevelDeclarations lists the declaring statements directly under root.
func topLevelDeclarations(root *sitter.Node, content []byte) []Declaration {
	var out []Declaration
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		kind := child.Type()
		if kind != "export_statement" && !declarationTypes[kind] {
			continue
		}
		out = append(out, Declaration{
			Kind:      kind,
			Names:     declaredNames(child, content),
			Exported:  kind == "export_statement",
			StartLine: int(child.StartPoint().Row) + 1,
			EndLine:   int(child.EndPoint().Row) + 1,
			Source:    child.Content(content),
		})
	}
	return out
}

// declaredNames returns the identifiers a root-level statement declares.
// For export statements the first child with a name wins; exported lexical
// declarations contribute every declarator.
func declaredNames(n *sitter.Node, content []byte) []string {
	if n.Type() != "export_statement" {
		if name := n.ChildByFieldName("name"); name != nil {
			return []string{name.Content(content)}
		}
		return declaratorNames(n, content)
	}

	var names []string
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if name := child.ChildByFieldName("name"); name != nil {
			return append(names, name.Content(content))
		}
		switch child.Type() {
		case "lexical_declaration", "variable_declaration":
			names = append(names, declaratorNames(child, content)...)
		}
	}
	return names
}

func declaratorNames(n *sitter.Node, content []byte) []string {
	var names []string
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || c.Type() != "variable_declarator" {
			continue
		}
		if name := c.ChildByFieldName("name"); name != nil {
			names = append(names, name.Content(content))
		}
	}
	return names
}

func firstChildOfType(n *sitter.Node, kind string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && c.Type() == kind {
			return c
		}
	}
	return nil
}
