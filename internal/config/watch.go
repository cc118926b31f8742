package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SelectorsWatcher monitors the configured selectors file and invokes the
// supplied callback whenever the strategy set changes. Stop must be called to
// release filesystem resources.
type SelectorsWatcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts the watcher and waits for the underlying goroutine to exit.
func (w *SelectorsWatcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// WatchSelectors wires fsnotify around the selectors file and reloads the
// strategy set on any relevant change. The initial load is delivered through
// onChange before the watcher goroutine starts, so callers always observe a
// valid set first.
func WatchSelectors(ctx context.Context, path string, onChange func(Strategies), onError func(error)) (*SelectorsWatcher, error) {
	if onChange == nil {
		return nil, errors.New("config: watch selectors requires a change callback")
	}
	if path == "" {
		return nil, errors.New("config: no selectors file configured for watching")
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve selectors file: %w", err)
	}
	target := filepath.Clean(resolved)

	strategies, err := LoadStrategies(target)
	if err != nil {
		return nil, err
	}
	onChange(strategies)

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("config: watch selectors: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		cancel()
		return nil, fmt.Errorf("config: watch add %s: %w", filepath.Dir(target), err)
	}

	done := make(chan struct{})
	watch := &SelectorsWatcher{cancel: cancel, done: done}

	go func() {
		defer close(done)
		defer func() {
			if err := watcher.Close(); err != nil && onError != nil {
				onError(fmt.Errorf("config: watch selectors close: %w", err))
			}
		}()

		var reloadMu sync.Mutex
		reload := func() {
			reloadMu.Lock()
			defer reloadMu.Unlock()
			strategies, err := LoadStrategies(target)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			onChange(strategies)
		}

		// Editors replace files with rename+create sequences, so changes
		// arrive in bursts; a short debounce folds them into one reload.
		const debounce = 25 * time.Millisecond
		var reloadTimer *time.Timer
		var reloadSignal <-chan time.Time
		scheduleReload := func() {
			if reloadTimer == nil {
				reloadTimer = time.NewTimer(debounce)
			} else {
				if !reloadTimer.Stop() {
					select {
					case <-reloadTimer.C:
					default:
					}
				}
				reloadTimer.Reset(debounce)
			}
			reloadSignal = reloadTimer.C
		}
		flushTimer := func() {
			if reloadTimer == nil {
				return
			}
			if !reloadTimer.Stop() {
				select {
				case <-reloadTimer.C:
				default:
				}
			}
			reloadSignal = nil
		}
		defer flushTimer()

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-reloadSignal:
				flushTimer()
				reload()
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					scheduleReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if err != nil && onError != nil {
					onError(fmt.Errorf("config: watch selectors: %w", err))
				}
			}
		}
	}()

	return watch, nil
}
