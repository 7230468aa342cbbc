package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"cvoptimizer/internal/errors"
)

// PromptWatcher watches prompt template files and calls reload, debounced,
// after any of them changes.
type PromptWatcher struct {
	mu sync.Mutex

	files         []string
	lastModTime   map[string]time.Time
	debounceDelay time.Duration
	debounceTimer *time.Timer
	reloadChan    chan struct{}

	reload func(ctx context.Context) error
	logger *errors.Logger
}

// NewPromptWatcher creates a watcher for files. A zero debounceDelay means one second.
func NewPromptWatcher(files []string, debounceDelay time.Duration, reload func(ctx context.Context) error, logger *errors.Logger) *PromptWatcher {
	if debounceDelay <= 0 {
		debounceDelay = time.Second
	}
	sorted := slices.Clone(files)
	slices.Sort(sorted)

	return &PromptWatcher{
		files:         sorted,
		lastModTime:   make(map[string]time.Time),
		debounceDelay: debounceDelay,
		reloadChan:    make(chan struct{}, 1),
		reload:        reload,
		logger:        logger,
	}
}

// Run watches until ctx is done
func (pw *PromptWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			pw.logger.LogError(err, "Failed to close prompt file watcher")
		}
	}()

	pw.updateModTimes()
	// directories catch editors that save by rename
	for _, dir := range pw.watchedDirs() {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	pw.logger.Info("Prompt file watcher started",
		"files", pw.files,
		"debounce_delay", pw.debounceDelay.String())

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if pw.shouldProcessEvent(event) {
				pw.scheduleReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			pw.logger.LogError(err, "Prompt file watcher error")

		case <-pw.reloadChan:
			if pw.hasAnyFileChanged() {
				pw.logger.Info("Prompt files changed, reloading templates")
				// a failed reload keeps the previous templates and is logged by reload
				_ = pw.reload(ctx)
			}

		case <-ctx.Done():
			pw.stopTimer()
			pw.logger.Info("Prompt file watcher stopped")
			return nil
		}
	}
}

func (pw *PromptWatcher) watchedDirs() []string {
	var dirs []string
	for _, file := range pw.files {
		dir := filepath.Dir(file)
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// shouldProcessEvent reports whether event touches a watched file
func (pw *PromptWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	return slices.ContainsFunc(pw.files, func(file string) bool {
		return filepath.Clean(file) == name
	})
}

func (pw *PromptWatcher) scheduleReload() {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	pw.debounceTimer = time.AfterFunc(pw.debounceDelay, func() {
		select {
		case pw.reloadChan <- struct{}{}:
		default:
			// reload already pending
		}
	})
}

func (pw *PromptWatcher) stopTimer() {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
}

func (pw *PromptWatcher) updateModTimes() {
	for _, file := range pw.files {
		if stat, err := os.Stat(file); err == nil {
			pw.lastModTime[file] = stat.ModTime()
		}
	}
}

// hasFileChanged checks if a file has been modified since last check
func (pw *PromptWatcher) hasFileChanged(file string) bool {
	stat, err := os.Stat(file)
	if err != nil {
		if _, exists := pw.lastModTime[file]; exists && os.IsNotExist(err) {
			delete(pw.lastModTime, file)
			return true
		}
		return false
	}

	lastMod, exists := pw.lastModTime[file]
	if !exists || stat.ModTime().After(lastMod) {
		pw.lastModTime[file] = stat.ModTime()
		return true
	}
	return false
}

// hasAnyFileChanged refreshes every file's modification time and reports whether any moved
func (pw *PromptWatcher) hasAnyFileChanged() bool {
	changed := false
	for _, file := range pw.files {
		if pw.hasFileChanged(file) {
			changed = true
		}
	}
	return changed
}
