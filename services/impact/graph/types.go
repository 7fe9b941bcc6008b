// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds a whole-repository call graph from parsed files.
//
// Nodes are function entities keyed by "file:name"; an edge from A to B
// means A contains a call that resolved to B. Adjacency is stored by key in
// both directions, never by pointer.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. After Freeze() the
// graph is read-only and may be queried from many goroutines.
//
// # Lifecycle
//
//  1. Create with NewGraph()
//  2. Add every node with AddNode()
//  3. Add every edge with AddEdge()
//  4. Call Freeze()
//  5. Query with GetNode(), HasNode()
package graph

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/naknumberone/smart-code-review/services/impact/ast"
)

// keySeparator joins the file and entity name of a NodeKey.
const keySeparator = ":"

// NodeKey identifies a node as "file:name".
type NodeKey string

// MakeKey builds the key of the entity name declared in file.
func MakeKey(file, name string) NodeKey {
	return NodeKey(file + keySeparator + name)
}

// File returns the file component of the key.
func (k NodeKey) File() string {
	s := string(k)
	if i := strings.LastIndex(s, keySeparator); i >= 0 {
		return s[:i]
	}
	return s
}

// Name returns the entity name component of the key.
func (k NodeKey) Name() string {
	s := string(k)
	if i := strings.LastIndex(s, keySeparator); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// Node is one entity in the call graph.
type Node struct {
	Key       NodeKey
	Name      string
	File      string
	StartLine int
	EndLine   int
	Source    string

	// Callers and Callees may contain a key more than once when a caller
	// has several call sites or same-named definitions resolving to the
	// same callee. Readers de-duplicate.
	Callers []NodeKey
	Callees []NodeKey
}

// Graph is the call graph of one analysis run.
type Graph struct {
	nodes     map[NodeKey]*Node
	files     map[string]struct{}
	edgeCount int
	frozen    bool
	stats     BuildStats

	// builtAtMilli is the Unix time in milliseconds when Freeze() was called.
	builtAtMilli int64
}

// NewGraph creates an empty graph ready for AddNode and AddEdge.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[NodeKey]*Node),
		files: make(map[string]struct{}),
	}
}

// AddNode adds the entity declared in file.
//
// Description:
//
//	If a node with the same key exists its metadata is replaced, so the
//	last definition of a duplicated name wins. Adjacency is kept.
//
// Outputs:
//
//	*Node - The stored node.
//	bool - True if an existing node was replaced.
//	error - ErrGraphFrozen or ErrInvalidNode.
func (g *Graph) AddNode(file string, entity ast.FunctionEntity) (*Node, bool, error) {
	if g.frozen {
		return nil, false, ErrGraphFrozen
	}
	if entity.Name == "" || strings.Contains(entity.Name, keySeparator) {
		return nil, false, fmt.Errorf("%w: name %q in %s", ErrInvalidNode, entity.Name, file)
	}

	key := MakeKey(file, entity.Name)
	node, replaced := g.nodes[key]
	if !replaced {
		node = &Node{Key: key, Name: entity.Name, File: file}
		g.nodes[key] = node
	}
	node.StartLine = entity.StartLine
	node.EndLine = entity.EndLine
	node.Source = entity.Source

	g.files[file] = struct{}{}
	return node, replaced, nil
}

// AddEdge records that caller calls callee.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrNodeNotFound - Either endpoint does not exist
func (g *Graph) AddEdge(caller, callee NodeKey) error {
	if g.frozen {
		return ErrGraphFrozen
	}

	from, ok := g.nodes[caller]
	if !ok {
		return fmt.Errorf("%w: caller %s", ErrNodeNotFound, caller)
	}
	to, ok := g.nodes[callee]
	if !ok {
		return fmt.Errorf("%w: callee %s", ErrNodeNotFound, callee)
	}

	from.Callees = append(from.Callees, callee)
	to.Callers = append(to.Callers, caller)
	g.edgeCount++
	return nil
}

// Freeze makes the graph read-only. Irreversible.
func (g *Graph) Freeze() {
	g.frozen = true
	g.builtAtMilli = time.Now().UnixMilli()
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *Graph) IsFrozen() bool {
	return g.frozen
}

// GetNode retrieves a node by key.
func (g *Graph) GetNode(key NodeKey) (*Node, bool) {
	node, ok := g.nodes[key]
	return node, ok
}

// HasNode reports whether key is a node.
func (g *Graph) HasNode(key NodeKey) bool {
	_, ok := g.nodes[key]
	return ok
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of raw edges, duplicates included.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// HasFile reports whether file owns at least one node.
func (g *Graph) HasFile(file string) bool {
	_, ok := g.files[file]
	return ok
}

// Files returns the files that own nodes, sorted.
func (g *Graph) Files() []string {
	files := make([]string, 0, len(g.files))
	for f := range g.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Stats returns the statistics of the build that produced the graph.
func (g *Graph) Stats() BuildStats {
	return g.stats
}
