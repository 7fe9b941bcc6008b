// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/naknumberone/smart-code-review/services/impact/telemetry"
	"github.com/naknumberone/smart-code-review/services/impact/watch"
)

type watchOptions struct {
	analyzeOptions
	debounce    time.Duration
	metricsAddr string
}

func newWatchCmd(g *globalOptions) *cobra.Command {
	o := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the analysis whenever source files change",
		Long: `watch runs one analysis, then watches the repository and runs it again
after every burst of changes to accepted source files. The diff, when given,
is read once and re-applied to the current file contents on every run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, g, o)
		},
	}
	o.bind(cmd)
	cmd.Flags().DurationVar(&o.debounce, "debounce", watch.DefaultDebounce, "quiet period before re-running")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func runWatch(cmd *cobra.Command, g *globalOptions, o *watchOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	format, err := resolveFormat(o.format, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	svc, err := o.newService(cmd, g)
	if err != nil {
		return err
	}
	diffText, err := o.readDiff(cmd.InOrStdin())
	if err != nil {
		return err
	}

	if o.metricsAddr != "" {
		cfg := telemetry.DefaultConfig()
		cfg.MetricExporter = telemetry.ExporterPrometheus
		if err := g.initTelemetry(ctx, cfg); err != nil {
			return err
		}
		srv := serveMetrics(o.metricsAddr, g.logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	run := func(ctx context.Context) {
		rep, err := o.analyze(ctx, g, svc, diffText)
		if err != nil {
			if ctx.Err() == nil {
				g.logger.Error("analysis failed", slog.String("error", err.Error()))
			}
			return
		}
		if err := writeReport(cmd.OutOrStdout(), format, rep); err != nil {
			g.logger.Error("write report", slog.String("error", err.Error()))
		}
	}

	// Fail fast on input errors before watching.
	if _, err := parseEntities(o.entities); err != nil {
		return err
	}
	if len(o.entities) == 0 && o.diffPath == "" {
		return errNoChanges
	}
	run(ctx)

	w, err := watch.New(svc.Root(), svc.Scanner(),
		watch.WithDebounce(o.debounce),
		watch.WithLogger(g.logger))
	if err != nil {
		return err
	}
	return w.Run(ctx, func(ctx context.Context, changes []watch.Change) {
		g.logger.Info("changes detected", slog.Int("paths", len(changes)))
		run(ctx)
	})
}

// serveMetrics starts the /metrics endpoint in the background.
func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.String("error", fmt.Sprint(err)))
		}
	}()
	return srv
}
