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

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("review_impact.analyzer")
	meter  = otel.Meter("review_impact.analyzer")
)

var (
	queryLatency metric.Float64Histogram
	queryTotal   metric.Int64Counter
	callersFound metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		queryLatency, err = meter.Float64Histogram(
			"impact_query_duration_seconds",
			metric.WithDescription("Duration of impact queries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryTotal, err = meter.Int64Counter(
			"impact_query_total",
			metric.WithDescription("Total number of impact queries"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		callersFound, err = meter.Int64Histogram(
			"impact_query_callers",
			metric.WithDescription("Callers found per impact query"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordQueryMetrics(ctx context.Context, duration time.Duration, found bool, callers int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("found", found))
	queryLatency.Record(ctx, duration.Seconds(), attrs)
	queryTotal.Add(ctx, 1, attrs)
	if found {
		callersFound.Record(ctx, int64(callers))
	}
}
