// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package impact

import (
	"errors"
	"fmt"
)

// ErrEmptyRoot is returned by NewService for an empty root path.
var ErrEmptyRoot = errors.New("repository root is empty")

// FileError reports a failure to read or parse one repository file. The
// service logs these and continues with the remaining files.
type FileError struct {
	Path string
	Op   string
	Err  error
}

// Error returns "op path: err".
func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}
