package devsession

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"projects-factory/internal/logging"
)

const defaultDebounce = 100 * time.Millisecond

// watchedExts are the presentation files a change to which triggers a reload.
var watchedExts = map[string]bool{".tmpl": true, ".yaml": true, ".yml": true}

// Watcher reports batches of changed presentation files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *logging.Logger

	changes  chan []string
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches dir (non-recursively) for template and theme edits.
func NewWatcher(dir string, log *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Watcher{
		watcher:  fw,
		debounce: defaultDebounce,
		log:      log.With("component", "devsession"),
		changes:  make(chan []string, 1),
		stopCh:   make(chan struct{}),
	}, nil
}

// Changes delivers one sorted batch of paths per debounced burst of edits. It
// is closed once the watcher stops.
func (w *Watcher) Changes() <-chan []string { return w.changes }

func (w *Watcher) Start() { go w.loop() }

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	defer close(w.changes)
	// Editors often emit several events for one save.
	timer := time.NewTimer(0)
	<-timer.C
	pending := map[string]bool{}

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !watchedExts[strings.ToLower(filepath.Ext(ev.Name))] {
				continue
			}
			pending[ev.Name] = true
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			pending = map[string]bool{}
			select {
			case w.changes <- batch:
			case <-w.stopCh:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}
