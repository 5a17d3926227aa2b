package explorer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/specvital/explorer/pkg/domain"
)

const defaultReloadDelay = 200 * time.Millisecond

// Watch reloads the tree whenever a test file below a watched directory is
// written, created, renamed or removed. Directories holding discovered files
// are watched, plus the project root. Bursts of events collapse into one
// reload. Watch blocks until ctx is done or the session is closed.
func (s *Session) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	s.watchTree(watcher, watched, s.Tree())

	var (
		timer  *time.Timer
		reload <-chan time.Time
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
		case <-s.done:
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(event) {
				continue
			}
			s.log.Debug("Test file changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(s.reloadDelay)
			} else {
				timer.Reset(s.reloadDelay)
			}
			reload = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("File watcher error", "err", err)

		case <-reload:
			reload = nil
			tree, _, err := s.Load(ctx)
			if err != nil {
				s.log.Warn("Reload failed", "err", err)
				continue
			}
			s.watchTree(watcher, watched, tree)
		}
	}
}

func (s *Session) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	if tree := s.Tree(); tree != nil && tree.Find(event.Name) != nil {
		return true
	}
	rel, err := filepath.Rel(s.Root(), event.Name)
	if err != nil {
		return false
	}
	return s.src.Matches(rel)
}

func (s *Session) watchTree(watcher *fsnotify.Watcher, watched map[string]bool, tree *domain.Tree) {
	dirs := []string{s.Root()}
	if tree != nil {
		for _, suite := range tree.Suites() {
			dirs = append(dirs, filepath.Dir(suite.File()))
		}
	}

	for _, dir := range dirs {
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			s.log.Warn("Cannot watch directory", "dir", dir, "err", err)
			continue
		}
		watched[dir] = true
	}
}
