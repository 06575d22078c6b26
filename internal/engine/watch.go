package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler processes one deck change. An error is logged and the watch
// continues.
type Handler func(ctx context.Context, ev Event) error

// DefaultSettle is how long Watch waits after a change before handling it,
// so a burst of writes from one save is handled once.
const DefaultSettle = 200 * time.Millisecond

// Watch calls handle each time the file at path is written, until ctx is
// done. The parent directory is watched because editors often replace the
// file rather than write it in place.
//
// handle runs on the calling goroutine only; changes that arrive while it
// runs are queued and coalesced.
func (e *Engine) Watch(ctx context.Context, path string, settle time.Duration, handle Handler) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	log := e.logger.With("component", "watch", "path", path)
	q := newEventQueue()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer q.Close()
		var seq int64
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				seq++
				if q.Enqueue(Event{Seq: seq, Path: path}) {
					log.Debug("deck changed", "seq", seq, "op", ev.Op.String())
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("watcher error", "error", err)
			}
		}
	}()

	log.Info("watching deck")
	err = e.loop(ctx, q, settle, handle)
	w.Close()
	<-done
	return err
}

// loop is the single consumer of q.
func (e *Engine) loop(ctx context.Context, q *eventQueue, settle time.Duration, handle Handler) error {
	log := e.logger.With("component", "watch")
	for {
		if ev, ok := q.TryDequeue(); ok {
			if err := handle(ctx, ev); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				log.Error("sync after change failed", "seq", ev.Seq, "error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			log.Info("watch stopping: context cancelled")
			return ctx.Err()
		case _, ok := <-q.Wait():
			if !ok && q.Len() == 0 {
				return ctx.Err()
			}
			if settle > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(settle):
				}
			}
		}
	}
}
