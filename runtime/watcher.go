// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package runtime

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce batches bursts of filesystem events (editors write,
// chmod, and rename in quick succession) into one reload.
const watchDebounce = 100 * time.Millisecond

// Watch reloads the loaded policy paths whenever one of them changes
// on disk. Blocks until ctx is done. onReload, if non-nil, is invoked
// after every reload attempt with its outcome.
func (e *Engine) Watch(ctx context.Context, onReload func(time.Duration, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, path := range e.loaded {
		if err := watcher.Add(path); err != nil {
			return err
		}
	}
	e.logger.WithFields(map[string]interface{}{"paths": e.loaded}).Debug("watching for changes")

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watcher.Errors:
			e.logger.Error("watch error: %v", err)
		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			e.logger.WithFields(map[string]interface{}{"event": event.String()}).Debug("policy file changed")
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
			} else {
				debounce.Reset(watchDebounce)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			begin := time.Now()
			err := e.LoadPaths(e.loaded)
			if err != nil {
				e.logger.Error("reload failed: %v", err)
			}
			if onReload != nil {
				onReload(time.Since(begin), err)
			}
		}
	}
}
