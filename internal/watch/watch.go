// Package watch implements the `--watch` CLI convenience: re-run a
// selection of recipes whenever a watched file changes on disk.
// cmd/justrun watches the justfile alone; files it imports are not
// watched. This sits outside the core compiler/runner per
// spec.md's scope; the teacher's go.mod already carried fsnotify with
// no code exercising it, so this is its one home in the CLI layer.
package watch

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Run watches paths and calls onChange for every Write or Create event
// on one of them, until ctx is canceled. Other event kinds are ignored;
// successive events are not coalesced, so several quick writes to one
// file call onChange several times.
func Run(ctx context.Context, paths []string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := map[string]bool{}
	for _, p := range paths {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	watched := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !watched[abs] {
				continue
			}
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
