package combat

// Stateful combat model: pulls, per-pull trackers, and the rolling windows
// the coaching rules read. A single State is owned by the engine goroutine;
// nothing here locks.

import (
	"strings"

	"github.com/MFredin/CombatCoaching/internal/events"
)

// Outcome of a finished pull.
type Outcome string

const (
	OutcomeKill Outcome = "kill"
	OutcomeWipe Outcome = "wipe"
)

// Pull is one combat encounter from start signal to end signal.
type Pull struct {
	PullNumber int
	StartMs    int64
	EndMs      int64 // zero while the pull is open
	Outcome    Outcome
	Encounter  string
}

// eventWindowMs bounds the rolling short-range history.
const eventWindowMs = 30_000

// WindowedEvent pairs an event with the timestamp it was recorded at.
type WindowedEvent struct {
	Ts    int64
	Event events.Event
}

// EventWindow keeps the last eventWindowMs of events in arrival order.
type EventWindow struct {
	events   []WindowedEvent
	windowMs int64
}

func newEventWindow(windowMs int64) EventWindow {
	return EventWindow{windowMs: windowMs}
}

func (w *EventWindow) Push(e events.Event, nowMs int64) {
	w.events = append(w.events, WindowedEvent{Ts: nowMs, Event: e})
	cutoff := nowMs - w.windowMs
	i := 0
	for i < len(w.events) && w.events[i].Ts < cutoff {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}

func (w *EventWindow) Events() []WindowedEvent { return w.events }

// AvoidableTracker counts per-spell hits on the coached player this pull.
type AvoidableTracker struct {
	hitCounts     map[int]int
	hitTimestamps map[int][]int64
}

func (t *AvoidableTracker) RecordHit(spellID int, ts int64) {
	if t.hitCounts == nil {
		t.hitCounts = make(map[int]int)
		t.hitTimestamps = make(map[int][]int64)
	}
	t.hitCounts[spellID]++
	t.hitTimestamps[spellID] = append(t.hitTimestamps[spellID], ts)
}

func (t *AvoidableTracker) HitCount(spellID int) int { return t.hitCounts[spellID] }

func (t *AvoidableTracker) TotalHits() int {
	total := 0
	for _, n := range t.hitCounts {
		total += n
	}
	return total
}

func (t *AvoidableTracker) Reset() {
	t.hitCounts = nil
	t.hitTimestamps = nil
}

// CooldownTracker records observed casts per spell this pull. Use counts
// let the drift rule distinguish "first use" from later re-casts without
// comparing timestamps across the same event.
type CooldownTracker struct {
	lastUsed map[int]int64
	useCount map[int]int
}

func (t *CooldownTracker) RecordCast(spellID int, ts int64) {
	if t.lastUsed == nil {
		t.lastUsed = make(map[int]int64)
		t.useCount = make(map[int]int)
	}
	t.lastUsed[spellID] = ts
	t.useCount[spellID]++
}

// LastUsedMs returns the last observed cast timestamp, or -1 when the spell
// has not been seen this pull.
func (t *CooldownTracker) LastUsedMs(spellID int) int64 {
	if v, ok := t.lastUsed[spellID]; ok {
		return v
	}
	return -1
}

func (t *CooldownTracker) UseCount(spellID int) int { return t.useCount[spellID] }

func (t *CooldownTracker) Reset() {
	t.lastUsed = nil
	t.useCount = nil
}

// GCDTracker measures the gap between consecutive coached casts.
type GCDTracker struct {
	lastCastMs   int64
	haveLastCast bool
	CurrentGapMs int64
}

func (t *GCDTracker) RecordCast(ts int64) {
	if t.haveLastCast {
		gap := ts - t.lastCastMs
		if gap < 0 {
			gap = 0
		}
		t.CurrentGapMs = gap
	}
	t.lastCastMs = ts
	t.haveLastCast = true
}

func (t *GCDTracker) Reset() {
	t.lastCastMs = 0
	t.haveLastCast = false
	t.CurrentGapMs = 0
}

// InterruptTracker remembers which spell IDs the coached player has been
// seen interrupting. Session-scoped: the set survives pull resets.
type InterruptTracker struct {
	interruptible map[int]struct{}
}

func (t *InterruptTracker) RecordInterrupt(spellID int) {
	if t.interruptible == nil {
		t.interruptible = make(map[int]struct{})
	}
	t.interruptible[spellID] = struct{}{}
}

func (t *InterruptTracker) IsInterruptible(spellID int) bool {
	_, ok := t.interruptible[spellID]
	return ok
}

// DamageTakenTracker is the per-pull damage intake sequence. Pruning is
// deferred to pull reset; a pull bounds its growth.
type DamageTakenTracker struct {
	hits []struct {
		Ts     int64
		Amount int64
	}
}

func (t *DamageTakenTracker) Record(ts, amount int64) {
	t.hits = append(t.hits, struct {
		Ts     int64
		Amount int64
	}{ts, amount})
}

// RecentDamage sums hits within the trailing window.
func (t *DamageTakenTracker) RecentDamage(nowMs, windowMs int64) int64 {
	cutoff := nowMs - windowMs
	var total int64
	for _, h := range t.hits {
		if h.Ts >= cutoff {
			total += h.Amount
		}
	}
	return total
}

func (t *DamageTakenTracker) Reset() { t.hits = nil }

// State is the full combat model.
type State struct {
	CurrentPull *Pull
	PullHistory []Pull

	EventWindow EventWindow
	Avoidable   AvoidableTracker
	Cooldowns   CooldownTracker
	GCD         GCDTracker
	Interrupts  InterruptTracker
	DamageTaken DamageTakenTracker

	InCombat       bool
	PlayerGUID     string
	FocusName      string
	InterruptCount int
	EncounterName  string

	// nameCache maps lowercased character names (realm suffix stripped) to
	// GUIDs for every player cast seen while the coached GUID is unknown.
	// Resolving the configured focus against it closes the race where the
	// user sets a focus after combat is already underway.
	nameCache map[string]string
}

func NewState() *State {
	return &State{EventWindow: newEventWindow(eventWindowMs)}
}

// Transition reports what Apply did to the pull lifecycle so the engine can
// persist and publish accordingly.
type Transition struct {
	PullStarted *Pull
	PullEnded   *Pull
}

// StartPull opens a pull and resets the per-pull trackers. Opening while a
// pull is open is a no-op. Learned interrupt knowledge is preserved.
func (s *State) StartPull(ts int64) *Pull {
	if s.InCombat {
		return nil
	}
	s.CurrentPull = &Pull{
		PullNumber: len(s.PullHistory) + 1,
		StartMs:    ts,
		Encounter:  s.EncounterName,
	}
	s.Avoidable.Reset()
	s.Cooldowns.Reset()
	s.GCD.Reset()
	s.DamageTaken.Reset()
	s.InterruptCount = 0
	s.InCombat = true
	return s.CurrentPull
}

// EndPull closes the current pull. Closing when none is open is a no-op.
func (s *State) EndPull(ts int64, outcome Outcome) *Pull {
	if s.CurrentPull == nil {
		return nil
	}
	pull := s.CurrentPull
	pull.EndMs = ts
	pull.Outcome = outcome
	pull.Encounter = s.EncounterName
	s.PullHistory = append(s.PullHistory, *pull)
	s.CurrentPull = nil
	s.InCombat = false
	return pull
}

// PullElapsedMs is time since pull start, saturating at 0; 0 with no pull.
func (s *State) PullElapsedMs(nowMs int64) int64 {
	if s.CurrentPull == nil {
		return 0
	}
	elapsed := nowMs - s.CurrentPull.StartMs
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// isCoached reports whether guid names the coached player.
func (s *State) isCoached(guid string) bool {
	return s.PlayerGUID != "" && guid == s.PlayerGUID
}

// charName strips the realm/region suffix: "Stonebraid-Stormrage" → "Stonebraid".
func charName(name string) string {
	if i := strings.IndexByte(name, '-'); i >= 0 {
		return name[:i]
	}
	return name
}

// observePlayerCast caches name→GUID while the coached GUID is unknown and
// adopts the GUID whose cached name matches the configured focus.
func (s *State) observePlayerCast(guid, name string) {
	if s.PlayerGUID != "" || !strings.HasPrefix(guid, events.GUIDPrefixPlayer) {
		return
	}
	if s.nameCache == nil {
		s.nameCache = make(map[string]string)
	}
	s.nameCache[strings.ToLower(charName(name))] = guid
	s.resolveFocus()
}

// resolveFocus adopts a cached GUID matching FocusName, if any.
func (s *State) resolveFocus() {
	if s.PlayerGUID != "" || s.FocusName == "" {
		return
	}
	if guid, ok := s.nameCache[strings.ToLower(charName(s.FocusName))]; ok {
		s.PlayerGUID = guid
	}
}

// SetFocusName updates the configured focus and re-resolves against the
// cast cache immediately.
func (s *State) SetFocusName(name string) {
	s.FocusName = name
	s.resolveFocus()
}

// SetPlayerGUID pins the coached player (identity sidecar is authoritative
// over inference).
func (s *State) SetPlayerGUID(guid string) {
	s.PlayerGUID = guid
}

// Apply advances the state machine for one event and returns the pull
// transition it caused, if any.
func (s *State) Apply(e events.Event) Transition {
	now := e.TimestampMs()
	var tr Transition

	switch ev := e.(type) {
	case events.EncounterStart:
		s.EncounterName = ev.EncounterName
		if p := s.StartPull(now); p != nil {
			p.Encounter = ev.EncounterName
			tr.PullStarted = p
		} else if s.CurrentPull != nil {
			// Already mid-pull (trash bled into the boss): keep the pull,
			// adopt the encounter name.
			s.CurrentPull.Encounter = ev.EncounterName
		}
		s.EventWindow.Push(e, now)

	case events.EncounterEnd:
		outcome := OutcomeWipe
		if ev.Success {
			outcome = OutcomeKill
		}
		tr.PullEnded = s.EndPull(now, outcome)
		s.EncounterName = ""
		s.EventWindow.Push(e, now)

	case events.SpellCastSuccess:
		s.observePlayerCast(ev.SourceGUID, ev.SourceName)
		// Fallback combat start for open-world and trash packs.
		if !s.InCombat {
			tr.PullStarted = s.StartPull(now)
		}
		if s.isCoached(ev.SourceGUID) {
			s.GCD.RecordCast(now)
			s.Cooldowns.RecordCast(ev.SpellID, now)
		}
		s.EventWindow.Push(e, now)

	case events.SpellDamage:
		if s.isCoached(ev.DestGUID) {
			s.Avoidable.RecordHit(ev.SpellID, now)
			s.DamageTaken.Record(now, ev.Amount)
		}
		s.EventWindow.Push(e, now)

	case events.SwingDamage:
		if s.isCoached(ev.DestGUID) {
			s.DamageTaken.Record(now, ev.Amount)
		}
		s.EventWindow.Push(e, now)

	case events.SpellInterrupted:
		if s.isCoached(ev.SourceGUID) {
			s.Interrupts.RecordInterrupt(ev.InterruptedSpellID)
			s.InterruptCount++
		}
		s.EventWindow.Push(e, now)

	case events.UnitDied:
		// Only a pull-end signal outside scripted encounters; the boss
		// markers are authoritative when present.
		if s.InCombat && s.EncounterName == "" {
			outcome := OutcomeWipe
			if strings.HasPrefix(ev.DestGUID, events.GUIDPrefixCreature) {
				outcome = OutcomeKill
			}
			tr.PullEnded = s.EndPull(now, outcome)
		}
		s.EventWindow.Push(e, now)

	default:
		s.EventWindow.Push(e, now)
	}

	return tr
}
