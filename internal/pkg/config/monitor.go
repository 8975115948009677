package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/gethiox/sensi/internal/pkg/logger"
)

// DetectChanges watches the config directory and notifies about writes to given files.
// The directory is watched instead of the files, editors tend to replace files on save.
func DetectChanges(ctx context.Context, dir string, files ...string) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cannot create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("cannot watch \"%s\": %w", dir, err)
	}

	watched := make(map[string]bool, len(files))
	for _, f := range files {
		watched[f] = true
	}

	var change = make(chan string, 1)

	go func() {
		<-ctx.Done()
		err := watcher.Close()
		if err != nil {
			log.Info(fmt.Sprintf("closing watcher failed: %v", err), logger.Warning)
		}
	}()

	go func() {
		defer close(change)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				name := filepath.Base(event.Name)
				if !watched[name] {
					continue
				}
				log.Info(fmt.Sprintf("config change detected: %s", event.Name), logger.Info)
				select {
				case change <- name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Info(fmt.Sprintf("config watcher error: %v", err), logger.Warning)
			}
		}
	}()

	return change, nil
}
