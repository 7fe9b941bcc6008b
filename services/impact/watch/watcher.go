// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch reports debounced source changes below a repository root.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period that ends a burst of changes.
const DefaultDebounce = 200 * time.Millisecond

// Filter decides which paths are watched and reported. Paths are relative
// to the root with forward slashes.
//
// *scanner.Scanner satisfies it, so the watcher and the scan agree on
// ignore rules.
type Filter interface {
	IgnoresDir(rel string) bool
	Accepts(rel string) bool
}

// Op is the kind of a change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one path that changed during a burst.
type Change struct {
	// Path is relative to the root, forward slashes.
	Path string

	// Op is the last operation seen for Path in the burst.
	Op Op

	// Dir is true for a directory that appeared, or a watched directory that
	// was removed or renamed.
	Dir bool
}

// Handler receives each debounced batch, sorted by path. It runs on the
// watcher's goroutine; events arriving meanwhile are queued.
type Handler func(ctx context.Context, changes []Change)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher watches every non-ignored directory below a root.
//
// # Thread Safety
//
// A Watcher is used by one Run call. All state is owned by that goroutine.
type Watcher struct {
	root     string
	filter   Filter
	debounce time.Duration
	logger   *slog.Logger

	fs    *fsnotify.Watcher
	dirs  map[string]bool
	ready chan struct{}
}

// New creates a Watcher for root.
//
// # Outputs
//
//   - *Watcher: Ready to Run.
//   - error: root is not a directory, or the OS watcher could not start.
func New(root string, filter Filter, opts ...Option) (*Watcher, error) {
	if filter == nil {
		return nil, fmt.Errorf("watch: nil filter")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:     abs,
		filter:   filter,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		fs:       fw,
		dirs:     make(map[string]bool),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Ready is closed once Run has registered the initial directory tree.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is done and calls onChange once per burst.
//
// # Description
//
// Every directory below the root that the filter does not ignore is
// watched, and directories created later are added as they appear. Files
// the filter does not accept are dropped. A burst ends after the debounce
// period passes without a new event; its changes are merged per path and
// passed to onChange.
//
// # Outputs
//
//   - error: Nil when ctx ends the run; otherwise the reason the OS watcher
//     stopped.
func (w *Watcher) Run(ctx context.Context, onChange Handler) error {
	defer w.fs.Close()

	w.addTree(".", false)
	close(w.ready)
	w.logger.Info("watching for changes",
		slog.String("root", w.root),
		slog.Int("dirs", len(w.dirs)),
		slog.Duration("debounce", w.debounce))

	pending := make(map[string]Change)
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("fsnotify event channel closed")
			}
			changes := w.translate(ev)
			if len(changes) == 0 {
				eventsSeen.WithLabelValues("ignored").Inc()
				continue
			}
			eventsSeen.WithLabelValues("queued").Inc()
			for _, c := range changes {
				pending[c.Path] = c
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			batch := drain(pending)
			batchesFlushed.Inc()
			w.logger.Debug("change batch", slog.Int("changes", len(batch)))
			if onChange != nil {
				onChange(ctx, batch)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("fsnotify error channel closed")
			}
			watchErrors.Inc()
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// translate maps one fsnotify event to reportable changes.
func (w *Watcher) translate(ev fsnotify.Event) []Change {
	rel, ok := w.rel(ev.Name)
	if !ok {
		return nil
	}

	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.filter.IgnoresDir(rel) {
				return nil
			}
			return append([]Change{{Path: rel, Op: OpCreate, Dir: true}}, w.addTree(rel, true)...)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if w.dirs[rel] {
			w.forgetTree(rel)
			return []Change{{Path: rel, Op: convertOp(ev.Op), Dir: true}}
		}
	case ev.Op == fsnotify.Chmod:
		return nil
	}

	if !w.filter.Accepts(rel) {
		return nil
	}
	return []Change{{Path: rel, Op: convertOp(ev.Op)}}
}

// addTree watches dir and every non-ignored directory below it. With
// collect set, accepted files already present are returned as creations.
func (w *Watcher) addTree(dir string, collect bool) []Change {
	var found []Change
	start := filepath.Join(w.root, filepath.FromSlash(dir))

	_ = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("cannot watch path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, ok := w.rel(path)
		if !ok {
			return nil
		}

		if d.IsDir() {
			if rel != "." && w.filter.IgnoresDir(rel) {
				return filepath.SkipDir
			}
			if err := w.fs.Add(path); err != nil {
				w.logger.Warn("cannot watch directory",
					slog.String("dir", rel),
					slog.String("error", err.Error()))
				return filepath.SkipDir
			}
			w.dirs[rel] = true
			return nil
		}

		if collect && w.filter.Accepts(rel) {
			found = append(found, Change{Path: rel, Op: OpCreate})
		}
		return nil
	})
	return found
}

func (w *Watcher) forgetTree(rel string) {
	prefix := rel + "/"
	for dir := range w.dirs {
		if dir == rel || strings.HasPrefix(dir, prefix) {
			delete(w.dirs, dir)
		}
	}
}

func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func drain(pending map[string]Change) []Change {
	batch := make([]Change, 0, len(pending))
	for path, c := range pending {
		batch = append(batch, c)
		delete(pending, path)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	return batch
}
