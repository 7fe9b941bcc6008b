// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsSeen = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "review_impact",
		Subsystem: "watch",
		Name:      "events_total",
		Help:      "File system events by outcome (queued, ignored)",
	}, []string{"outcome"})

	batchesFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "review_impact",
		Subsystem: "watch",
		Name:      "batches_total",
		Help:      "Debounced change batches handed to the change handler",
	})

	watchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "review_impact",
		Subsystem: "watch",
		Name:      "errors_total",
		Help:      "Errors reported by the file system watcher",
	})
)
