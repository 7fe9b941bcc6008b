// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File outcomes recorded by filesSeen.
const (
	outcomeAccepted = "accepted"
	outcomeIgnored  = "ignored"
	outcomeFiltered = "filtered"
)

var (
	// filesSeen counts every regular file the walk visits.
	// Labels: outcome (accepted, ignored, filtered)
	filesSeen = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "review_impact",
		Subsystem: "scanner",
		Name:      "files_total",
		Help:      "Files visited by the scanner, by outcome",
	}, []string{"outcome"})

	// dirsPruned counts directories skipped with their whole subtree.
	dirsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "review_impact",
		Subsystem: "scanner",
		Name:      "dirs_pruned_total",
		Help:      "Directories pruned by VCS or ignore rules",
	})

	// scanFailures counts subtrees that could not be read.
	scanFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "review_impact",
		Subsystem: "scanner",
		Name:      "failures_total",
		Help:      "Unreadable paths skipped during a scan",
	})
)
