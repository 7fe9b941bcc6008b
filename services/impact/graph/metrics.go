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

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("review_impact.graph")
	meter  = otel.Meter("review_impact.graph")
)

var (
	buildLatency    metric.Float64Histogram
	buildTotal      metric.Int64Counter
	nodesCreated    metric.Int64Histogram
	edgesCreated    metric.Int64Histogram
	callsUnresolved metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"impact_graph_build_duration_seconds",
			metric.WithDescription("Duration of call graph builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"impact_graph_build_total",
			metric.WithDescription("Total number of call graph builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesCreated, err = meter.Int64Histogram(
			"impact_graph_nodes",
			metric.WithDescription("Nodes per built graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesCreated, err = meter.Int64Histogram(
			"impact_graph_edges",
			metric.WithDescription("Edges per built graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		callsUnresolved, err = meter.Int64Counter(
			"impact_graph_unresolved_calls_total",
			metric.WithDescription("Call names that resolved to no node"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a build operation.
func recordBuildMetrics(ctx context.Context, duration time.Duration, stats BuildStats, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success {
		nodesCreated.Record(ctx, int64(stats.Nodes))
		edgesCreated.Record(ctx, int64(stats.Edges))
		callsUnresolved.Add(ctx, int64(stats.Unresolved))
	}
}
