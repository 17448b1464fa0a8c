package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"annmerge/adapter"
)

// DefaultSettleDelay is how long a dump file must stay unchanged before it
// is imported.
const DefaultSettleDelay = 500 * time.Millisecond

// Watch submits dump files created or rewritten in dir to the worker until
// ctx is done. Each file is imported once it stops changing for settle.
// Results are handed to report in submission order, report may be nil.
func Watch(ctx context.Context, dir string, w *Worker, settle time.Duration, report func(Result)) error {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	log := w.log.Named("watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Clean(dir)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	log.Info("Watching for annotation dumps", zap.String("dir", dir))

	var (
		mu      sync.Mutex
		timers  = make(map[string]*time.Timer)
		settled = make(chan string)
		results = make(chan (<-chan Result), 64)
		wg      sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
		close(results)
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for ch := range results {
			r := <-ch
			if report != nil {
				report(r)
			}
		}
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Reset(settle)
			return
		}
		timers[path] = time.AfterFunc(settle, func() {
			mu.Lock()
			delete(timers, path)
			mu.Unlock()
			select {
			case settled <- path:
			case <-ctx.Done():
			}
		})
	}
	cancel := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Stop()
			delete(timers, path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !adapter.Supported(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				cancel(ev.Name)
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(ev.Name)
			}
		case path := <-settled:
			log.Debug("Dump settled", zap.String("path", path))
			results <- w.Submit(path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("Watcher error", zap.Error(err))
		}
	}
}
