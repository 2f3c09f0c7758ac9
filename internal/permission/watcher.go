package permission

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"loom/pkg/logger"
)

const reloadDebounce = 100 * time.Millisecond

// PolicyWatcher re-applies the policy file to a gate when it changes on
// disk. Editor saves often arrive as bursts of events, so reloads are
// debounced.
type PolicyWatcher struct {
	watcher *fsnotify.Watcher
	gate    *Gate
	path    string
	stopCh  chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// NewPolicyWatcher creates a watcher for one policy file.
func NewPolicyWatcher(gate *Gate, path string) (*PolicyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &PolicyWatcher{
		watcher: w,
		gate:    gate,
		path:    path,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start applies the current policy and begins watching.
func (w *PolicyWatcher) Start() error {
	if err := w.reload(); err != nil {
		return err
	}

	if err := w.watcher.Add(w.path); err != nil {
		// The file may not exist yet; watch for it appearing.
		logger.Warn().Err(err).Str("path", w.path).Msg("Failed to watch policy file")
	}

	go w.run()
	return nil
}

func (w *PolicyWatcher) run() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Msg("Policy watcher error")
		}
	}
}

func (w *PolicyWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, func() {
		if err := w.reload(); err != nil {
			logger.Error().Err(err).Str("path", w.path).Msg("Failed to reload policy")
		}
	})
}

func (w *PolicyWatcher) reload() error {
	policy, err := LoadPolicy(w.path)
	if err != nil {
		return err
	}
	if err := policy.Apply(w.gate); err != nil {
		return err
	}
	logger.Debug().Str("path", w.path).Msg("Policy applied")
	return nil
}

// Stop stops the watcher.
func (w *PolicyWatcher) Stop() {
	close(w.stopCh)

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.watcher.Close()
}
