package app

// Pipeline wiring: builds the bounded queues, starts every component
// goroutine, and tears the pipeline down in topological order when the
// context is cancelled.
//
//	tailer -> parser -> engine -> bus / store
//	identity ----------^
//
// Queue capacities and overflow policies: tailer->parser 2048 and
// parser->engine 1024 block the sender (backpressure reaches the tailer);
// identity->engine 16 blocks; the engine-side snapshot/debrief feeds drop
// on full inside the bus.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MFredin/CombatCoaching/internal/bus"
	"github.com/MFredin/CombatCoaching/internal/config"
	"github.com/MFredin/CombatCoaching/internal/engine"
	"github.com/MFredin/CombatCoaching/internal/events"
	"github.com/MFredin/CombatCoaching/internal/identity"
	"github.com/MFredin/CombatCoaching/internal/store"
	"github.com/MFredin/CombatCoaching/internal/tailer"
)

const (
	lineQueueCap     = 2048
	eventQueueCap    = 1024
	identityQueueCap = 16
)

// App owns the long-lived resources of one engine run.
type App struct {
	cfg   *config.Config
	log   *slog.Logger
	bus   *bus.Bus
	store *store.Store
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	st, err := store.Open(cfg.DBPath, log)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, log: log, bus: bus.New(), store: st}, nil
}

// Bus exposes the fan-out layer to consumers (overlay, settings, CLI feed).
func (a *App) Bus() *bus.Bus { return a.bus }

// Run starts the pipeline and blocks until ctx is cancelled and every
// stage has drained. Closing an inbound queue terminates its owner, so
// shutdown rolls downstream: tailer and identity stop on cancel, the
// parser stops when the line queue closes, the engine when both inbound
// queues close, and the store drains last.
func (a *App) Run(ctx context.Context) error {
	lines := make(chan string, lineQueueCap)
	evs := make(chan events.Event, eventQueueCap)
	ids := make(chan identity.Identity, identityQueueCap)

	eng := engine.New(engine.Options{
		Intensity: a.cfg.Intensity,
		FocusName: a.cfg.PlayerFocus,
		SpecKey:   a.cfg.SelectedSpec,
		MajorCDs:  a.cfg.MajorCDs,
		AMSpells:  a.cfg.AMSpells,
	}, a.store, a.bus, a.log)

	if err := eng.StartSession(time.Now().UnixMilli()); err != nil {
		// Coaching still works live; only history is lost.
		a.log.Warn("could not open session row", "error", err)
	}

	parser := events.NewParser()
	parser.Legacy = a.cfg.LegacyParser

	tl := tailer.New(a.cfg.LogDir, a.cfg.LogPrefix, a.cfg.LogSuffix, a.bus, a.log)

	idw := identity.NewWatcher(a.cfg.SidecarPath, a.log)
	idw.Status = a.bus.SetAddonConnected

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		tl.Run(ctx, lines)
	}()
	go func() {
		defer wg.Done()
		events.Run(lines, evs, parser)
	}()
	go func() {
		defer wg.Done()
		idw.Run(ctx, ids)
	}()
	go func() {
		defer wg.Done()
		eng.Run(evs, ids)
	}()

	wg.Wait()
	a.bus.Close()
	return a.store.Close()
}
