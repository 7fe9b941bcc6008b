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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/naknumberone/smart-code-review/services/impact/telemetry"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	logLevel  string
	logFormat string

	logger   *slog.Logger
	shutdown func(context.Context) error
}

// newRootCmd returns the command tree and the options it shares. Callers
// own teardown of g once the command has run.
func newRootCmd() (*cobra.Command, *globalOptions) {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "review-impact",
		Short: "Find the callers affected by a code change",
		Long: `review-impact builds a call graph of a JavaScript/TypeScript repository
and reports, for each changed function, class or method, every entity that
calls it directly or transitively.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "log format: text or json")

	cmd.AddCommand(
		newAnalyzeCmd(g),
		newWatchCmd(g),
		newVersionCmd(),
	)
	return cmd, g
}

// setup builds the logger and installs telemetry providers chosen through
// the OTEL_* environment variables.
func (g *globalOptions) setup(cmd *cobra.Command) error {
	logger, err := telemetry.NewLogger(cmd.ErrOrStderr(), g.logFormat, g.logLevel)
	if err != nil {
		return err
	}
	g.logger = logger
	return g.initTelemetry(cmd.Context(), telemetry.DefaultConfig())
}

func (g *globalOptions) initTelemetry(ctx context.Context, cfg telemetry.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if g.shutdown != nil {
		if err := g.shutdown(ctx); err != nil {
			return err
		}
		g.shutdown = nil
	}
	cfg.ServiceVersion = version
	shutdown, err := telemetry.Init(ctx, cfg)
	if err != nil {
		return err
	}
	g.shutdown = shutdown
	return nil
}

func (g *globalOptions) teardown(ctx context.Context) error {
	if g.shutdown == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := g.shutdown(ctx)
	g.shutdown = nil
	return err
}
