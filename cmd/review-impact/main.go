// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command review-impact reports which code depends on the entities touched
// by a change.
//
// # Usage
//
//	review-impact analyze --root . --diff change.patch
//	git diff | review-impact analyze --root . --diff -
//	review-impact analyze --root . --entity src/api.ts:fetchUser --format yaml
//	review-impact watch --root . --diff change.patch --metrics-addr :9090
//
// # Exit Codes
//
//   - 0: Analysis completed
//   - 1: --fail-on-impact was set and some entity has callers
//   - 2: Error
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess  = 0
	CLIExitFindings = 1
	CLIExitError    = 2
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root, g := newRootCmd()
	root.SetArgs(args)
	return executeCmd(root, g)
}

// executeCmd runs root and maps its outcome to an exit code. Telemetry is
// shut down here because cobra skips post-run hooks when RunE fails.
func executeCmd(root *cobra.Command, g *globalOptions) int {
	err := root.Execute()
	if tdErr := g.teardown(context.Background()); tdErr != nil {
		if err == nil {
			err = fmt.Errorf("telemetry shutdown: %w", tdErr)
		} else {
			fmt.Fprintf(root.ErrOrStderr(), "Warning: telemetry shutdown: %v\n", tdErr)
		}
	}

	switch {
	case err == nil:
		return CLIExitSuccess
	case errors.Is(err, errImpactFound):
		return CLIExitFindings
	default:
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return CLIExitError
	}
}
