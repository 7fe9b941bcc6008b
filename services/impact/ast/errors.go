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
	"errors"
	"fmt"
)

// Sentinel errors for parse failure conditions.
//
// These errors can be checked using errors.Is() to determine the
// category of failure without inspecting error messages.
var (
	// ErrFileTooLarge indicates the content exceeds the configured maximum
	// file size.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")

	// ErrInvalidContent indicates the content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrParseFailed indicates tree-sitter produced no tree.
	ErrParseFailed = errors.New("parse failed")
)

// ParseError reports a failure to parse one file.
//
// Example:
//
//	result, err := parser.Parse(ctx, content, "src/app.ts")
//	if err != nil {
//	    var parseErr *ParseError
//	    if errors.As(err, &parseErr) {
//	        fmt.Printf("skipping %s: %v\n", parseErr.FilePath, parseErr.Cause)
//	    }
//	}
type ParseError struct {
	// FilePath is the path of the file that failed.
	FilePath string

	// Cause is the underlying error, usually wrapping a sentinel above.
	Cause error
}

// Error returns "path: cause".
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.FilePath, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// wrapParseError wraps err with file context. ParseErrors are returned
// unchanged.
func wrapParseError(err error, filePath string) error {
	if err == nil {
		return nil
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return err
	}
	return &ParseError{FilePath: filePath, Cause: err}
}
