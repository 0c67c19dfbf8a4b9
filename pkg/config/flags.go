package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// FlagSource reports whether multi-tenant administration is enabled. It is
// injected into every component that consults the flag so the disabled-state
// behavior is testable rather than ambient process state.
type FlagSource interface {
	Enabled() bool
}

// StaticFlag is a FlagSource with a fixed value.
type StaticFlag bool

// Enabled implements FlagSource.
func (f StaticFlag) Enabled() bool { return bool(f) }

// flagFile is the on-disk shape of the watched flag file.
type flagFile struct {
	MultiTenantAdmin bool `json:"multi_tenant_admin"`
}

// FileFlag is a FlagSource backed by a JSON file, reloaded on change via
// fsnotify. Reads are lock-free.
type FileFlag struct {
	path    string
	enabled atomic.Bool
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileFlag loads the flag file and starts watching it for changes.
func NewFileFlag(path string) (*FileFlag, error) {
	f := &FileFlag{
		path: path,
		done: make(chan struct{}),
	}

	if err := f.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create flag file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch flag file %s: %w", path, err)
	}
	f.watcher = watcher

	go f.watch()

	return f, nil
}

// Enabled implements FlagSource.
func (f *FileFlag) Enabled() bool {
	return f.enabled.Load()
}

// Close stops the file watcher.
func (f *FileFlag) Close() error {
	close(f.done)
	return f.watcher.Close()
}

func (f *FileFlag) reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read flag file %s: %w", f.path, err)
	}

	var parsed flagFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse flag file %s: %w", f.path, err)
	}

	f.enabled.Store(parsed.MultiTenantAdmin)
	return nil
}

func (f *FileFlag) watch() {
	for {
		select {
		case <-f.done:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				// A parse failure keeps the last good value.
				_ = f.reload()
			}
			// Editors that replace the file drop the watch on the old inode.
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				_ = f.watcher.Add(f.path)
				_ = f.reload()
			}
		case _, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
