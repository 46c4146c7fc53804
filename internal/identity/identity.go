package identity

// Watches the in-game plugin's SavedVariables sidecar and publishes player
// identity updates. The plugin is sandboxed inside the game client and can
// only persist to disk, so a small key/value file plus a directory watch is
// the whole contract. The game writes the file on logout or /reload, so
// updates are rare and need no debounce.
//
// File contents look like:
//
//	CombatCoachDB = {
//	    ["playerGUID"] = "Player-1234-ABCDEF",
//	    ["playerName"] = "Stonebraid",
//	    ["realmName"]  = "Stormrage",
//	    ["className"]  = "PALADIN",
//	    ["specName"]   = "Retribution",
//	    ["addonVersion"] = "0.1.0",
//	}

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Identity is the coached player as reported by the plugin.
type Identity struct {
	GUID    string
	Name    string
	Realm   string
	Class   string
	Spec    string
	Version string
}

// Known reports whether the plugin has handed us a usable identity.
func (id Identity) Known() bool { return id.GUID != "" }

// extractLuaString finds `["key"] = "value"` in a SavedVariables table.
func extractLuaString(content, key string) (string, bool) {
	needle := fmt.Sprintf("[%q]", key)
	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, needle) {
			continue
		}
		_, after, found := strings.Cut(line, "=")
		if !found {
			return "", false
		}
		after = strings.TrimSpace(after)
		if !strings.HasPrefix(after, `"`) {
			return "", false
		}
		inner := after[1:]
		end := strings.IndexByte(inner, '"')
		if end < 0 {
			return "", false
		}
		return inner[:end], true
	}
	return "", false
}

// ParseSavedVariables extracts an Identity from the sidecar contents.
// GUID and name are required; everything else is best-effort.
func ParseSavedVariables(content string) (Identity, bool) {
	guid, ok := extractLuaString(content, "playerGUID")
	if !ok {
		return Identity{}, false
	}
	name, ok := extractLuaString(content, "playerName")
	if !ok {
		return Identity{}, false
	}
	id := Identity{GUID: guid, Name: name}
	id.Realm, _ = extractLuaString(content, "realmName")
	id.Class, _ = extractLuaString(content, "className")
	id.Spec, _ = extractLuaString(content, "specName")
	id.Version, _ = extractLuaString(content, "addonVersion")
	return id, true
}

// Watcher follows one sidecar file and emits identity updates.
type Watcher struct {
	path string
	log  *slog.Logger

	// Status receives plugin-connectivity changes (true once a valid
	// identity has been read). Optional.
	Status func(connected bool)
}

func NewWatcher(path string, log *slog.Logger) *Watcher {
	return &Watcher{path: path, log: log.With("component", "identity")}
}

func (w *Watcher) setStatus(connected bool) {
	if w.Status != nil {
		w.Status(connected)
	}
}

// readAndEmit re-reads the sidecar and sends an update when it parses.
func (w *Watcher) readAndEmit(ctx context.Context, out chan<- Identity) {
	content, err := os.ReadFile(w.path)
	if err != nil {
		w.log.Warn("could not read sidecar", "path", w.path, "error", err)
		return
	}
	id, ok := ParseSavedVariables(string(content))
	if !ok {
		return
	}
	w.log.Info("identity update", "name", id.Name, "class", id.Class, "spec", id.Spec)
	w.setStatus(true)
	select {
	case out <- id:
	case <-ctx.Done():
	}
}

// Run watches the sidecar until ctx is cancelled, closing out on exit.
// A missing file is not fatal: the watcher idles and the engine falls back
// to name-based GUID inference.
func (w *Watcher) Run(ctx context.Context, out chan<- Identity) {
	defer close(out)

	if w.path == "" {
		w.log.Info("no sidecar path configured")
		w.setStatus(false)
		<-ctx.Done()
		return
	}

	// Initial read if the player was logged in before we started.
	if _, err := os.Stat(w.path); err == nil {
		w.readAndEmit(ctx, out)
	} else {
		w.log.Info("sidecar not found yet, waiting for first write", "path", w.path)
		w.setStatus(false)
	}

	// Watch the parent directory; the game replaces the file on write,
	// which would invalidate a watch on the file itself.
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("could not create watcher", "error", err)
		<-ctx.Done()
		return
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		w.log.Warn("could not watch sidecar directory", "dir", dir, "error", err)
		<-ctx.Done()
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			w.readAndEmit(ctx, out)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}
