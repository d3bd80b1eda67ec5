// This file watches documents.jsonl for writes made by other processes and
// reloads them into the database.
package sqlite

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/showcase/pkg/types"
)

// reloadDebounce coalesces the burst of events produced by one atomic
// temp-file rename.
const reloadDebounce = 50 * time.Millisecond

// fileWatcher reports changes to one file inside a watched directory.
type fileWatcher struct {
	watcher  *fsnotify.Watcher
	name     string
	onChange func()
	log      zerolog.Logger
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newFileWatcher(dir, name string, onChange func(), log zerolog.Logger) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	fw := &fileWatcher{
		watcher:  w,
		name:     name,
		onChange: onChange,
		log:      log,
		done:     make(chan struct{}),
	}
	fw.wg.Add(1)
	go fw.run()
	return fw, nil
}

func (fw *fileWatcher) run() {
	defer fw.wg.Done()

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != fw.name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(reloadDebounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(reloadDebounce)
			}
		case <-fire:
			fw.onChange()
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (fw *fileWatcher) stop() {
	fw.stopOnce.Do(func() {
		close(fw.done)
		fw.watcher.Close()
		fw.wg.Wait()
	})
}

// onFileChanged reloads documents.jsonl when its content differs from what
// this process last wrote, then pushes fresh snapshots to every subscriber.
// Reload failures reach subscribers as ErrSubscriptionFailed.
func (b *Backend) onFileChanged() {
	reloaded, err := b.reload(context.Background())
	if err != nil {
		b.log.Warn().Err(err).Msg("reload failed")
		b.notifyError(fmt.Errorf("%w: %w", types.ErrSubscriptionFailed, err))
		return
	}
	if !reloaded {
		return
	}
	b.notifyAll()
}

func (b *Backend) reload(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return false, nil
	}
	content, err := os.ReadFile(b.jsonlPath)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", documentsJSONL, err)
	}
	if bytes.Equal(content, b.persisted) {
		return false, nil
	}
	if b.dirty {
		b.log.Warn().Msg("external change ignored: unpersisted local writes pending")
		return false, nil
	}
	records, err := parseJSONL(content)
	if err != nil {
		return false, err
	}
	n, err := loadDocuments(ctx, b.db, records)
	if err != nil {
		return false, err
	}
	b.persisted = content
	b.log.Info().Int("documents", n).Msg("reloaded external changes")
	return true, nil
}
