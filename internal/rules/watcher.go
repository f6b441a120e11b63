package rules

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the engine's rule set when the rules file changes.
// A reload that fails to parse or validate keeps the previous set.
type Watcher struct {
	engine   *Engine
	filePath string
	watcher  *fsnotify.Watcher

	done chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewWatcher creates a watcher for the given rules file.
func NewWatcher(engine *Engine, filePath string) (*Watcher, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve rules path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Watcher{
		engine:   engine,
		filePath: absPath,
		watcher:  fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The parent directory is watched so that
// editors that replace the file (rename + create) are still seen.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.filePath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch rules directory: %w", err)
	}

	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.filePath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("rules watcher error: %v", err)
		}
	}
}

// reload rebuilds the full rule set from the file and swaps it in.
func (w *Watcher) reload() {
	set, err := LoadSet(w.filePath)
	if err != nil {
		log.Printf("rules reload failed, keeping previous set: %v", err)
		return
	}
	if err := w.engine.Reload(set); err != nil {
		log.Printf("rules reload rejected, keeping previous set: %v", err)
		return
	}
	log.Printf("rules reloaded from %s (%d rules)", w.filePath, len(set))
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true

	close(w.done)
	w.watcher.Close()
}
