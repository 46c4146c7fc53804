package tailer

// Rotation-aware tailer for the game's combat log directory.
//
// The game both creates new timestamped log files and occasionally
// truncates the current one, so the watch is on the directory, not a file
// handle. On every create event matching the filename pattern the
// directory is re-scanned and the newest-mtime match becomes the active
// file; a switch restarts from byte 0. If the active file shrinks below
// the read position it was rewritten and the position resets.
//
// Bytes between the last newline and EOF are held back in a carry buffer
// until their terminator arrives, so every appended byte is emitted as
// part of exactly one complete line.

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MFredin/CombatCoaching/internal/bus"
)

// heartbeatInterval re-publishes connection status so consumers that
// subscribed late still learn the current state.
const heartbeatInterval = 5 * time.Second

// Tailer follows the newest matching log file in one directory.
type Tailer struct {
	dir    string
	prefix string
	suffix string
	bus    *bus.Bus
	log    *slog.Logger

	active  string
	pos     int64
	partial []byte
}

func New(dir, prefix, suffix string, b *bus.Bus, log *slog.Logger) *Tailer {
	return &Tailer{
		dir:    dir,
		prefix: prefix,
		suffix: suffix,
		bus:    b,
		log:    log.With("component", "tailer"),
	}
}

func (t *Tailer) matches(name string) bool {
	return strings.HasPrefix(name, t.prefix) && strings.HasSuffix(name, t.suffix)
}

// findLatest returns the newest-mtime file matching the pattern, or "".
func (t *Tailer) findLatest() string {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return ""
	}
	var (
		newest     string
		newestTime time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !t.matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(t.dir, entry.Name())
			newestTime = info.ModTime()
		}
	}
	return newest
}

// checkForNewLog re-scans and switches to a newer file, resetting the read
// position. Reports whether the active file changed.
func (t *Tailer) checkForNewLog() bool {
	newest := t.findLatest()
	if newest == "" || newest == t.active {
		return false
	}
	t.log.Info("switching to new log file", "path", newest)
	t.active = newest
	t.pos = 0
	t.partial = nil
	return true
}

func (t *Tailer) publishStatus() {
	if t.bus != nil {
		t.bus.SetLogTailing(t.active != "", t.dir)
	}
}

// readNew reads from the current position to EOF and emits every complete
// line. Transient I/O errors are logged and retried on the next event.
func (t *Tailer) readNew(ctx context.Context, out chan<- string) {
	if t.active == "" {
		// The file may have appeared between the watcher event and now.
		if !t.checkForNewLog() {
			return
		}
		t.publishStatus()
	}

	info, err := os.Stat(t.active)
	if err != nil {
		return
	}
	size := info.Size()

	if size < t.pos {
		t.log.Info("log rotation detected, restarting from byte 0", "path", t.active)
		t.pos = 0
		t.partial = nil
	}
	if size == t.pos {
		return
	}

	f, err := os.Open(t.active)
	if err != nil {
		t.log.Warn("could not open log file", "path", t.active, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Seek(t.pos, io.SeekStart); err != nil {
		t.log.Warn("seek failed", "path", t.active, "error", err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, size-t.pos))
	if err != nil {
		t.log.Warn("read failed", "path", t.active, "error", err)
		return
	}
	t.pos = size

	buf := append(t.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(string(buf[:i]), "\r")
		buf = buf[i+1:]
		if line == "" {
			continue
		}
		select {
		case out <- line:
		case <-ctx.Done():
			return
		}
	}
	// Carry the unterminated tail until the game finishes the line.
	t.partial = append([]byte(nil), buf...)
}

// Run tails the directory until ctx is cancelled, closing out on exit.
// A missing directory is non-fatal: the tailer idles, publishing
// log_tailing=false, and retries on the heartbeat.
func (t *Tailer) Run(ctx context.Context, out chan<- string) {
	defer close(out)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		t.log.Warn("could not create watcher", "error", err)
		t.publishStatus()
		<-ctx.Done()
		return
	}
	defer fw.Close()

	watching := fw.Add(t.dir) == nil
	if !watching {
		t.log.Warn("log directory not watchable yet", "dir", t.dir)
	}

	// Pick up lines already in the current log file.
	t.checkForNewLog()
	t.publishStatus()
	t.readNew(ctx, out)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			switch {
			case ev.Has(fsnotify.Create) && t.matches(filepath.Base(ev.Name)):
				if t.checkForNewLog() {
					t.publishStatus()
				}
				t.readNew(ctx, out)
			case ev.Has(fsnotify.Write) && ev.Name == t.active:
				t.readNew(ctx, out)
			case ev.Has(fsnotify.Write) && t.active == "" && t.matches(filepath.Base(ev.Name)):
				// Writes to a pre-existing log we have not adopted yet.
				if t.checkForNewLog() {
					t.publishStatus()
				}
				t.readNew(ctx, out)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			t.log.Warn("watcher error", "error", err)

		case <-heartbeat.C:
			if !watching {
				watching = fw.Add(t.dir) == nil
				if watching {
					t.log.Info("log directory appeared, watching", "dir", t.dir)
					t.checkForNewLog()
					t.readNew(ctx, out)
				}
			}
			t.publishStatus()
		}
	}
}
