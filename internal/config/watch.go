package config

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/opencode-ai/acpthread/internal/logging"
)

// Watch reloads settings whenever a settings file under directory (or
// the ACPTHREAD_CONFIG override) changes, and invokes onChange with the
// freshly assembled result. Returns a stop function.
func Watch(directory string, onChange func(*Settings)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	log := logging.Component("config")

	dirs := watchDirs(directory)
	watching := false
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("cannot watch config dir")
			continue
		}
		watching = true
	}
	if !watching {
		_ = watcher.Close()
		return func() {}, nil
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				s, err := Load(directory)
				if err != nil {
					log.Warn().Err(err).Msg("config reload failed")
					continue
				}
				log.Info().Str("file", ev.Name).Msg("config reloaded")
				onChange(s)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}

func watchDirs(directory string) []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "acpthread"))
	}
	if directory != "" {
		dirs = append(dirs, filepath.Join(directory, ".acpthread"))
	}
	if path := os.Getenv("ACPTHREAD_CONFIG"); path != "" {
		dirs = append(dirs, filepath.Dir(path))
	}
	return dirs
}
