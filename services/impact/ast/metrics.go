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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("review_impact.ast")
	meter  = otel.Meter("review_impact.ast")
)

var (
	parseLatency      metric.Float64Histogram
	parseTotal        metric.Int64Counter
	entitiesExtracted metric.Int64Histogram
	depthTruncations  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"impact_parse_duration_seconds",
			metric.WithDescription("Duration of file parses"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseTotal, err = meter.Int64Counter(
			"impact_parse_total",
			metric.WithDescription("Total number of file parses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		entitiesExtracted, err = meter.Int64Histogram(
			"impact_parse_entities",
			metric.WithDescription("Entities extracted per parsed file"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		depthTruncations, err = meter.Int64Counter(
			"impact_parse_depth_truncations_total",
			metric.WithDescription("Subtrees skipped for exceeding the tree depth cap"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordParseMetrics records one parse.
func recordParseMetrics(ctx context.Context, lang Language, duration time.Duration, entities, truncated int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", string(lang)),
		attribute.Bool("success", success),
	)
	parseLatency.Record(ctx, duration.Seconds(), attrs)
	parseTotal.Add(ctx, 1, attrs)

	if !success {
		return
	}
	langAttr := metric.WithAttributes(attribute.String("language", string(lang)))
	entitiesExtracted.Record(ctx, int64(entities), langAttr)
	if truncated > 0 {
		depthTruncations.Add(ctx, int64(truncated), langAttr)
	}
}

func startParseSpan(ctx context.Context, name string, lang Language, filePath string, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("ast.language", string(lang)),
			attribute.String("ast.file", filePath),
			attribute.Int("ast.content_size", size),
		),
	)
}
