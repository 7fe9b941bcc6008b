// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	// Once Freeze() is called, the graph is read-only.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrNodeNotFound is returned when an edge references a non-existent node.
	// Both endpoints must exist before an edge can be created.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidNode is returned for an entity with an empty name or a name
	// containing the key separator.
	ErrInvalidNode = errors.New("invalid node")

	// ErrBuildCancelled is returned when a build is cancelled via context.
	ErrBuildCancelled = errors.New("build cancelled")
)
