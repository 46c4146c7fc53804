package engine

// The engine owns all mutable combat state. It drains typed events and
// identity updates, advances the state machine, evaluates the coaching
// rules, deduplicates advice with per-severity cooldowns, persists through
// the store writer, and publishes snapshots, advice and debriefs on the
// fan-out bus.
//
// Everything here runs on one goroutine; no locking.

import (
	"log/slog"
	"time"

	"github.com/MFredin/CombatCoaching/internal/bus"
	"github.com/MFredin/CombatCoaching/internal/combat"
	"github.com/MFredin/CombatCoaching/internal/events"
	"github.com/MFredin/CombatCoaching/internal/identity"
	"github.com/MFredin/CombatCoaching/internal/rules"
	"github.com/MFredin/CombatCoaching/internal/specs"
)

// Recorder is the slice of the store the engine writes through. Reply-
// bearing calls block until the writer answers; the rest are
// fire-and-forget.
type Recorder interface {
	InsertSession(startedAt int64, playerName, playerGUID string) (int64, error)
	UpdateSession(sessionID int64, playerName, playerGUID string)
	UpdateSessionSpec(sessionID int64, spec, realm string)
	EndSession(sessionID, endedAt int64)
	InsertPull(sessionID int64, pullNumber int, startedAt int64, encounter string) (int64, error)
	EndPull(pullID, endedAt int64, outcome, encounter string)
	InsertAdvice(pullID, firedAt int64, ruleKey, severity, message string)
}

// Options configure one engine run.
type Options struct {
	// Intensity gates how chatty the rules are, 1 (quiet) to 5 (aggressive).
	Intensity int
	// FocusName seeds passive GUID inference until the plugin reports in.
	FocusName string
	// SpecKey selects an embedded profile ("CLASS/Spec") when the plugin
	// has not reported a spec yet.
	SpecKey string
	// MajorCDs / AMSpells override the profile lists entirely when set.
	MajorCDs []int
	AMSpells []int
}

// Engine is the rule evaluator task.
type Engine struct {
	state    *combat.State
	identity identity.Identity

	intensity int
	specKey   string
	majorCDs  []int
	amSpells  []int
	// explicitLists pins user-supplied spell lists against profile auto-load.
	explicitLists bool

	// dedup maps advice key to its last firing; cleared on pull end.
	dedup map[string]int64

	rec Recorder
	bus *bus.Bus
	log *slog.Logger

	sessionID int64
	pullRowID int64

	adviceFired int
	gcdGapCount int
	lastEventMs int64

	profileWarned bool
}

func New(opts Options, rec Recorder, b *bus.Bus, log *slog.Logger) *Engine {
	e := &Engine{
		state:         combat.NewState(),
		intensity:     opts.Intensity,
		specKey:       opts.SpecKey,
		majorCDs:      opts.MajorCDs,
		amSpells:      opts.AMSpells,
		explicitLists: len(opts.MajorCDs) > 0 || len(opts.AMSpells) > 0,
		dedup:         make(map[string]int64),
		rec:           rec,
		bus:           b,
		log:           log.With("component", "engine"),
	}
	e.state.SetFocusName(opts.FocusName)
	if !e.explicitLists && opts.SpecKey != "" {
		e.loadProfileByKey(opts.SpecKey)
	}
	return e
}

func (e *Engine) loadProfileByKey(key string) {
	p, ok := specs.LoadByKey(key)
	if !ok {
		if !e.profileWarned {
			e.log.Info("no spec profile for key, cooldown rules disabled", "key", key)
			e.profileWarned = true
		}
		return
	}
	e.majorCDs = p.MajorCDSpellIDs
	e.amSpells = p.AMSpellIDs
}

// StartSession opens the session row. Identity fields may be empty; they
// are back-filled when the plugin reports in.
func (e *Engine) StartSession(startedAtMs int64) error {
	id, err := e.rec.InsertSession(startedAtMs, e.identity.Name, e.identity.GUID)
	if err != nil {
		return err
	}
	e.sessionID = id
	return nil
}

// Run drains both inbound queues until they close, then stamps the session
// end. Queue closure is the cancellation signal.
func (e *Engine) Run(eventCh <-chan events.Event, idCh <-chan identity.Identity) {
	for eventCh != nil || idCh != nil {
		select {
		case id, ok := <-idCh:
			if !ok {
				idCh = nil
				continue
			}
			e.handleIdentity(id)
		case ev, ok := <-eventCh:
			if !ok {
				eventCh = nil
				continue
			}
			e.handleEvent(ev)
		}
	}
	if e.sessionID != 0 {
		e.rec.EndSession(e.sessionID, time.Now().UnixMilli())
	}
}

func (e *Engine) handleIdentity(id identity.Identity) {
	e.log.Info("identity updated", "name", id.Name, "class", id.Class, "spec", id.Spec)
	e.identity = id
	e.state.SetPlayerGUID(id.GUID)

	if e.sessionID != 0 {
		e.rec.UpdateSession(e.sessionID, id.Name, id.GUID)
		if id.Spec != "" || id.Realm != "" {
			e.rec.UpdateSessionSpec(e.sessionID, id.Spec, id.Realm)
		}
	}

	// Adopt the matching profile unless the user pinned explicit lists.
	if !e.explicitLists && id.Class != "" && id.Spec != "" {
		if p, ok := specs.Load(id.Class, id.Spec); ok {
			e.majorCDs = p.MajorCDSpellIDs
			e.amSpells = p.AMSpellIDs
		} else if !e.profileWarned {
			e.log.Info("no spec profile, cooldown rules disabled", "class", id.Class, "spec", id.Spec)
			e.profileWarned = true
		}
	}
}

func (e *Engine) handleEvent(ev events.Event) {
	now := ev.TimestampMs()
	e.lastEventMs = now

	tr := e.state.Apply(ev)

	if tr.PullStarted != nil {
		e.onPullStarted(tr.PullStarted)
	}

	ctx := &rules.Context{
		State:     e.state,
		Identity:  e.identity,
		Intensity: e.intensity,
		NowMs:     now,
		MajorCDs:  e.majorCDs,
		AMSpells:  e.amSpells,
	}
	for _, advice := range rules.Evaluate(ev, ctx) {
		if !e.canFire(advice.Key, advice.Severity, now) {
			continue
		}
		e.dedup[advice.Key] = now
		e.adviceFired++
		if advice.Key == "gcd_gap" {
			e.gcdGapCount++
		}
		e.bus.PublishAdvice(advice)
		if e.pullRowID != 0 {
			e.rec.InsertAdvice(e.pullRowID, now, advice.Key, string(advice.Severity), advice.Message)
		}
	}

	e.bus.PublishSnapshot(bus.Snapshot{
		PullElapsedMs:  e.state.PullElapsedMs(now),
		GcdGapMs:       e.state.GCD.CurrentGapMs,
		AvoidableCount: e.state.Avoidable.TotalHits(),
		InCombat:       e.state.InCombat,
		InterruptCount: e.state.InterruptCount,
		EncounterName:  e.state.EncounterName,
	})

	if tr.PullEnded != nil {
		e.onPullEnded(tr.PullEnded)
	}
}

func (e *Engine) onPullStarted(pull *combat.Pull) {
	e.log.Info("pull started", "pull", pull.PullNumber, "encounter", pull.Encounter, "start_ms", pull.StartMs)
	if e.sessionID == 0 {
		return
	}
	id, err := e.rec.InsertPull(e.sessionID, pull.PullNumber, pull.StartMs, pull.Encounter)
	if err != nil {
		// The pull stays live for coaching even if the row is lost.
		e.log.Warn("could not persist pull", "error", err)
		e.pullRowID = 0
		return
	}
	e.pullRowID = id
}

func (e *Engine) onPullEnded(pull *combat.Pull) {
	e.log.Info("pull ended", "pull", pull.PullNumber, "outcome", pull.Outcome)
	if e.pullRowID != 0 {
		e.rec.EndPull(e.pullRowID, pull.EndMs, string(pull.Outcome), pull.Encounter)
	}

	elapsed := pull.EndMs - pull.StartMs
	if elapsed < 0 {
		elapsed = 0
	}
	e.bus.PublishDebrief(bus.Debrief{
		PullNumber:       pull.PullNumber,
		PullElapsedMs:    elapsed,
		Outcome:          string(pull.Outcome),
		AvoidableCount:   e.state.Avoidable.TotalHits(),
		InterruptCount:   e.state.InterruptCount,
		TotalAdviceFired: e.adviceFired,
		GcdGapCount:      e.gcdGapCount,
	})

	// Advice cooldowns are scoped to the pull.
	e.dedup = make(map[string]int64)
	e.adviceFired = 0
	e.gcdGapCount = 0
	e.pullRowID = 0
}

func (e *Engine) canFire(key string, severity rules.Severity, nowMs int64) bool {
	last, seen := e.dedup[key]
	if !seen {
		return true
	}
	return nowMs-last >= rules.CooldownMs(severity)
}
