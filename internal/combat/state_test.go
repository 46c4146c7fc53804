package combat

import (
	"testing"

	"github.com/MFredin/CombatCoaching/internal/events"
)

const (
	coachedGUID = "Player-1234-ABCDEF"
	bossGUID    = "Creature-0-4372-2549-28242-000"
)

func coachedState() *State {
	s := NewState()
	s.SetPlayerGUID(coachedGUID)
	return s
}

func TestPullLifecycle(t *testing.T) {
	s := NewState()
	if s.InCombat {
		t.Fatal("fresh state should not be in combat")
	}

	if p := s.StartPull(1000); p == nil || p.PullNumber != 1 {
		t.Fatalf("StartPull = %+v", p)
	}
	if !s.InCombat {
		t.Error("should be in combat after StartPull")
	}
	if got := s.PullElapsedMs(3000); got != 2000 {
		t.Errorf("PullElapsedMs = %d, want 2000", got)
	}

	// Opening while open is a no-op.
	if p := s.StartPull(2000); p != nil {
		t.Errorf("second StartPull should be nil, got %+v", p)
	}

	ended := s.EndPull(5000, OutcomeWipe)
	if ended == nil || ended.Outcome != OutcomeWipe || ended.EndMs != 5000 {
		t.Fatalf("EndPull = %+v", ended)
	}
	if s.InCombat || len(s.PullHistory) != 1 {
		t.Errorf("post-end state: in_combat=%v history=%d", s.InCombat, len(s.PullHistory))
	}

	// Closing when none is open is a no-op.
	if p := s.EndPull(6000, OutcomeKill); p != nil {
		t.Errorf("EndPull with no pull should be nil, got %+v", p)
	}

	if p := s.StartPull(9000); p.PullNumber != 2 {
		t.Errorf("pull number = %d, want 2", p.PullNumber)
	}
}

func TestPullElapsedSaturates(t *testing.T) {
	s := NewState()
	s.StartPull(10_000)
	if got := s.PullElapsedMs(9_500); got != 0 {
		t.Errorf("PullElapsedMs before start = %d, want 0", got)
	}
	if got := s.PullElapsedMs(0); got != 0 {
		t.Errorf("PullElapsedMs with clock step = %d, want 0", got)
	}
}

func TestEncounterStartAndEnd(t *testing.T) {
	s := coachedState()
	tr := s.Apply(events.EncounterStart{Ts: 0, EncounterID: 2902, EncounterName: "Ulgrax the Devourer", DifficultyID: 16, GroupSize: 20})
	if tr.PullStarted == nil {
		t.Fatal("encounter start should open a pull")
	}
	if s.EncounterName != "Ulgrax the Devourer" {
		t.Errorf("encounter name = %q", s.EncounterName)
	}

	// Deaths inside an encounter do not end the pull.
	tr = s.Apply(events.UnitDied{Ts: 30_000, DestGUID: bossGUID, DestName: "Add"})
	if tr.PullEnded != nil {
		t.Error("death during encounter should not end the pull")
	}

	tr = s.Apply(events.EncounterEnd{Ts: 60_000, EncounterID: 2902, EncounterName: "Ulgrax the Devourer", Success: true})
	if tr.PullEnded == nil || tr.PullEnded.Outcome != OutcomeKill {
		t.Fatalf("encounter end: %+v", tr.PullEnded)
	}
	if tr.PullEnded.Encounter != "Ulgrax the Devourer" {
		t.Errorf("pull encounter = %q", tr.PullEnded.Encounter)
	}
	if s.EncounterName != "" {
		t.Errorf("encounter name should clear, got %q", s.EncounterName)
	}
}

func TestCastOpensFallbackPull(t *testing.T) {
	s := coachedState()
	tr := s.Apply(events.SpellCastSuccess{Ts: 500, SourceGUID: coachedGUID, SourceName: "Stonebraid", SpellID: 100, SpellName: "Strike"})
	if tr.PullStarted == nil {
		t.Fatal("cast out of combat should open a pull")
	}

	// Creature death outside an encounter closes the pull as a kill.
	tr = s.Apply(events.UnitDied{Ts: 4000, DestGUID: bossGUID, DestName: "Mob"})
	if tr.PullEnded == nil || tr.PullEnded.Outcome != OutcomeKill {
		t.Fatalf("unit died: %+v", tr.PullEnded)
	}

	// Player death outside an encounter is a wipe.
	s.Apply(events.SpellCastSuccess{Ts: 8000, SourceGUID: coachedGUID, SourceName: "Stonebraid", SpellID: 100, SpellName: "Strike"})
	tr = s.Apply(events.UnitDied{Ts: 9000, DestGUID: coachedGUID, DestName: "Stonebraid"})
	if tr.PullEnded == nil || tr.PullEnded.Outcome != OutcomeWipe {
		t.Fatalf("player death: %+v", tr.PullEnded)
	}
}

func TestTrackersResetOnPullStartButInterruptsPersist(t *testing.T) {
	s := coachedState()
	s.Apply(events.SpellCastSuccess{Ts: 0, SourceGUID: coachedGUID, SourceName: "Stonebraid", SpellID: 100, SpellName: "Strike"})
	s.Apply(events.SpellDamage{Ts: 100, SourceGUID: bossGUID, SourceName: "Boss", DestGUID: coachedGUID, DestName: "Stonebraid", SpellID: 999, SpellName: "Fire", Amount: 1000})
	s.Apply(events.SpellInterrupted{Ts: 200, SourceGUID: coachedGUID, TargetGUID: bossGUID, InterruptedSpellID: 555, InterruptedSpell: "Dark Mending"})

	if s.Avoidable.HitCount(999) != 1 || s.InterruptCount != 1 {
		t.Fatalf("trackers not recording: hits=%d interrupts=%d", s.Avoidable.HitCount(999), s.InterruptCount)
	}

	s.Apply(events.UnitDied{Ts: 300, DestGUID: bossGUID, DestName: "Boss"})
	s.Apply(events.SpellCastSuccess{Ts: 20_000, SourceGUID: coachedGUID, SourceName: "Stonebraid", SpellID: 100, SpellName: "Strike"})

	if s.Avoidable.HitCount(999) != 0 {
		t.Error("avoidable hits should reset on new pull")
	}
	if s.InterruptCount != 0 {
		t.Error("interrupt count should reset on new pull")
	}
	if !s.Interrupts.IsInterruptible(555) {
		t.Error("interruptible knowledge should persist across pulls")
	}
}

func TestGCDTracker(t *testing.T) {
	var g GCDTracker
	g.RecordCast(1000)
	if g.CurrentGapMs != 0 {
		t.Errorf("first cast gap = %d, want 0", g.CurrentGapMs)
	}
	g.RecordCast(3500)
	if g.CurrentGapMs != 2500 {
		t.Errorf("gap = %d, want 2500", g.CurrentGapMs)
	}
	// Non-monotonic log clock saturates instead of going negative.
	g.RecordCast(3400)
	if g.CurrentGapMs != 0 {
		t.Errorf("gap after clock step = %d, want 0", g.CurrentGapMs)
	}
}

func TestCooldownTrackerUseCounts(t *testing.T) {
	var c CooldownTracker
	if c.LastUsedMs(100) != -1 {
		t.Error("unseen spell should report -1")
	}
	c.RecordCast(100, 9000)
	c.RecordCast(100, 20_000)
	if c.UseCount(100) != 2 || c.LastUsedMs(100) != 20_000 {
		t.Errorf("count=%d last=%d", c.UseCount(100), c.LastUsedMs(100))
	}
}

func TestDamageTakenWindow(t *testing.T) {
	var d DamageTakenTracker
	d.Record(1000, 5000)
	d.Record(3000, 10_000)
	d.Record(6000, 8000)
	if got := d.RecentDamage(7000, 5000); got != 18_000 {
		t.Errorf("RecentDamage(5s) = %d, want 18000", got)
	}
	if got := d.RecentDamage(7000, 2000); got != 8000 {
		t.Errorf("RecentDamage(2s) = %d, want 8000", got)
	}
}

func TestEventWindowTrims(t *testing.T) {
	w := newEventWindow(30_000)
	w.Push(events.SwingDamage{Ts: 0}, 0)
	w.Push(events.SwingDamage{Ts: 10_000}, 10_000)
	w.Push(events.SwingDamage{Ts: 45_000}, 45_000)
	evs := w.Events()
	if len(evs) != 2 {
		t.Fatalf("window len = %d, want 2", len(evs))
	}
	if evs[0].Ts != 10_000 {
		t.Errorf("oldest retained = %d, want 10000", evs[0].Ts)
	}
}

func TestPassiveFocusInference(t *testing.T) {
	s := NewState()
	s.SetFocusName("stonebraid")

	// Casts from other players are cached but not adopted.
	s.Apply(events.SpellCastSuccess{Ts: 0, SourceGUID: "Player-1-AAA", SourceName: "Someone-Stormrage", SpellID: 1, SpellName: "X"})
	if s.PlayerGUID != "" {
		t.Fatalf("adopted wrong GUID %q", s.PlayerGUID)
	}

	// Realm suffix and case are ignored when matching the focus.
	s.Apply(events.SpellCastSuccess{Ts: 100, SourceGUID: coachedGUID, SourceName: "Stonebraid-Stormrage", SpellID: 1, SpellName: "X"})
	if s.PlayerGUID != coachedGUID {
		t.Fatalf("PlayerGUID = %q, want %q", s.PlayerGUID, coachedGUID)
	}
}

func TestFocusConfiguredAfterCombatStarts(t *testing.T) {
	s := NewState()
	s.Apply(events.SpellCastSuccess{Ts: 0, SourceGUID: coachedGUID, SourceName: "Stonebraid", SpellID: 1, SpellName: "X"})
	if s.PlayerGUID != "" {
		t.Fatal("no focus configured yet")
	}
	// The cached cast resolves as soon as the focus arrives.
	s.SetFocusName("Stonebraid")
	if s.PlayerGUID != coachedGUID {
		t.Fatalf("PlayerGUID = %q, want %q", s.PlayerGUID, coachedGUID)
	}
}

func TestCreatureCastsAreNotCachedForInference(t *testing.T) {
	s := NewState()
	s.SetFocusName("Magmorax")
	s.Apply(events.SpellCastSuccess{Ts: 0, SourceGUID: bossGUID, SourceName: "Magmorax", SpellID: 1, SpellName: "X"})
	if s.PlayerGUID != "" {
		t.Errorf("creature GUID adopted: %q", s.PlayerGUID)
	}
}
