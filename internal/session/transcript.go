// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TranscriptReader tails an append-only line-delimited JSON transcript
// file that may not yet exist when tailing is requested. It watches the
// file's parent directory for the file's creation (the fsnotify fast
// path), falling back to a fixed poll cadence, and then follows appended
// lines from position zero.
type TranscriptReader struct {
	path string

	ready  chan struct{}
	lines  chan Record
	errCh  chan error
	stopCh chan struct{}
}

// pollInterval is both the pre-creation poll fallback and the post-open
// "check for more appended bytes" cadence.
const pollInterval = 200 * time.Millisecond

// OpenTranscriptReader registers path and immediately begins watching for
// its creation in the background; it never fails synchronously because the
// file legitimately may not exist yet.
func OpenTranscriptReader(path string) *TranscriptReader {
	r := &TranscriptReader{
		path:   path,
		ready:  make(chan struct{}),
		lines:  make(chan Record, 64),
		errCh:  make(chan error, 1),
		stopCh: make(chan struct{}),
	}
	go r.run()
	return r
}

// Ready closes once the transcript file has been opened and tailing has
// begun. Bootstrap selects on this alongside its own nudge ticker and
// overall timeout.
func (r *TranscriptReader) Ready() <-chan struct{} { return r.ready }

// Lines yields parsed records in file order as they are appended.
func (r *TranscriptReader) Lines() <-chan Record { return r.lines }

// Err yields a terminal error, if tailing ends abnormally. It is never
// sent to on a quiescent-but-healthy file.
func (r *TranscriptReader) Err() <-chan error { return r.errCh }

// Close stops tailing.
func (r *TranscriptReader) Close() {
	close(r.stopCh)
}

func (r *TranscriptReader) run() {
	f, err := r.waitForFile()
	if err != nil {
		if err != errStopped {
			r.errCh <- err
		}
		return
	}
	defer f.Close()
	close(r.ready)
	r.tail(f)
}

var errStopped = errors.New("transcript reader stopped before file appeared")

// waitForFile blocks until path exists and can be opened, using fsnotify on
// the parent directory as the fast path and a fixed poll as the fallback —
// the same "watcher events channel + ticking fallback" shape the rest of
// the file-watching stack uses.
func (r *TranscriptReader) waitForFile() (*os.File, error) {
	if f, err := os.Open(r.path); err == nil {
		return f, nil
	}

	dir := filepath.Dir(r.path)
	watcher, werr := fsnotify.NewWatcher()
	if werr == nil {
		defer watcher.Close()
		_ = watcher.Add(dir)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return nil, errStopped
		case <-ticker.C:
			if f, err := os.Open(r.path); err == nil {
				return f, nil
			}
		case ev, ok := <-watcherEvents(watcher):
			if !ok {
				continue
			}
			if ev.Name == r.path && (ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				if f, err := os.Open(r.path); err == nil {
					return f, nil
				}
			}
		}
	}
}

// watcherEvents returns w.Events, or a nil channel (which blocks forever
// in a select) if the watcher failed to construct.
func watcherEvents(w *fsnotify.Watcher) chan fsnotify.Event {
	if w == nil {
		return nil
	}
	return w.Events
}

func (r *TranscriptReader) tail(f *os.File) {
	reader := bufio.NewReader(f)

	watcher, werr := fsnotify.NewWatcher()
	if werr == nil {
		defer watcher.Close()
		_ = watcher.Add(r.path)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	emit := func() bool {
		for {
			line, err := reader.ReadString('\n')
			if len(line) > 0 && err == nil {
				r.lines <- ParseRecord(trimNewline(line))
				continue
			}
			if len(line) > 0 && err == io.EOF {
				// Partial trailing line from an in-progress write; hold it
				// and retry on the next wake rather than emitting a
				// truncated record.
				if _, serr := f.Seek(-int64(len(line)), io.SeekCurrent); serr == nil {
					reader.Reset(f)
				}
				return true
			}
			if err == io.EOF {
				return true
			}
			r.errCh <- err
			return false
		}
	}

	if !emit() {
		return
	}
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if !emit() {
				return
			}
		case _, ok := <-watcherEvents(watcher):
			if !ok {
				continue
			}
			if !emit() {
				return
			}
		}
	}
}

func trimNewline(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
