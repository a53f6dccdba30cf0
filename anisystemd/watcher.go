package anisystemd

import (
	"context"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// WatchKind is the kind of a filesystem change.
type WatchKind string

const (
	WatchCreated  WatchKind = "created"
	WatchModified WatchKind = "modified"
	WatchRemoved  WatchKind = "removed"
	WatchOther    WatchKind = "other" // chmod and anything unknown
)

// WatchEvent is a single filesystem change, as seen by the Watcher.
type WatchEvent struct {
	Paths []string
	Kind  WatchKind
}

// Watcher watches the plugin directory and raises a ChangeCondition once an
// artifact is created, modified or removed.
//
// Errors reported by the filesystem backend are journaled as warnings and
// watching continues. If the backend breaks for good, the process keeps
// running and simply stops noticing changes; a plugin update then takes
// effect on the next restart for some other reason.
type Watcher struct {
	filter *ArtifactFilter
	cond   *ChangeCondition

	w   *fsnotify.Watcher
	j   Journaler
	dir string

	closeOnce sync.Once
	closeErr  error
}

// NewWatcher creates the directory if it does not exist and starts watching
// it, non-recursively. Watch must be called to process events, and Close to
// release the underlying watch.
func NewWatcher(dir string, filter *ArtifactFilter, cond *ChangeCondition, j Journaler) (*Watcher, error) {
	if err := ensureDir(dir, j); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create watcher")
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, errors.Wrap(err, "failed to watch dir")
	}

	j.Write(&EventWatchStarted{Dir: dir})

	return &Watcher{
		filter: filter,
		cond:   cond,
		w:      watcher,
		j:      j,
		dir:    dir,
	}, nil
}

func ensureDir(dir string, j Journaler) error {
	stat, err := os.Stat(dir)
	if err == nil {
		if !stat.IsDir() {
			return errors.Errorf("plugin path %q is not a directory", dir)
		}
		return nil
	}

	if !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to stat plugin dir")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create plugin dir")
	}

	j.Write(&EventDirCreated{Dir: dir})
	return nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Watch processes filesystem events until the context is canceled or the
// watcher is closed.
func (w *Watcher) Watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}

			watchErrors.Inc()
			warn(w.j, "watcher", errors.Wrap(err, "inotify error"))

		case evt, ok := <-w.w.Events:
			if !ok {
				return
			}

			w.HandleEvent(translateFsnotifyEvt(evt))
		}
	}
}

// HandleEvent applies the artifact filter to a single event and raises the
// change condition if it names an artifact. It returns true if the event
// counted as an artifact change, even if the condition was already set.
func (w *Watcher) HandleEvent(ev WatchEvent) bool {
	matched := w.filter.MatchAny(ev.Paths)
	if len(matched) == 0 {
		return false
	}

	switch ev.Kind {
	case WatchCreated, WatchModified, WatchRemoved:
	default:
		return false
	}

	artifactEvents.WithLabelValues(string(ev.Kind)).Inc()

	w.j.Write(&EventArtifactChanged{
		Kind:  ev.Kind,
		Paths: ev.Paths,
	})

	w.cond.Raise(matched...)
	return true
}

// Close releases the underlying watch. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.w.Close()
	})
	return w.closeErr
}

// translateFsnotifyEvt translates an fsnotify event into a WatchEvent.
func translateFsnotifyEvt(evt fsnotify.Event) WatchEvent {
	ev := WatchEvent{
		Paths: []string{evt.Name},
		Kind:  WatchOther,
	}

	switch {
	case evt.Op&fsnotify.Create != 0:
		ev.Kind = WatchCreated
	case evt.Op&fsnotify.Write != 0:
		ev.Kind = WatchModified
	case evt.Op&fsnotify.Rename != 0:
		// Treat a rename as a remove; fsnotify only reports the old name, and
		// the new one shows up as a separate create.
		// See: https://github.com/fsnotify/fsnotify/issues/26
		fallthrough
	case evt.Op&fsnotify.Remove != 0:
		ev.Kind = WatchRemoved
	}

	return ev
}
