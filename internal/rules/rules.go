package rules

// Coaching rules: pure functions over (event, context) producing candidate
// advice. Deduplication and per-severity cooldowns live in the engine; a
// rule only decides whether its condition holds right now.

import (
	"fmt"
	"strings"

	"github.com/MFredin/CombatCoaching/internal/combat"
	"github.com/MFredin/CombatCoaching/internal/events"
	"github.com/MFredin/CombatCoaching/internal/identity"
)

// Severity drives advice presentation and the dedup cooldown.
type Severity string

const (
	SeverityGood Severity = "good"
	SeverityWarn Severity = "warn"
	SeverityBad  Severity = "bad"
)

// CooldownMs is the minimum spacing between two firings of the same key.
func CooldownMs(s Severity) int64 {
	switch s {
	case SeverityBad:
		return 8_000
	case SeverityWarn:
		return 12_000
	default:
		return 20_000
	}
}

// KV is one key/value detail attached to an advice item.
type KV struct {
	Key   string
	Value string
}

// Advice is a single coaching message candidate.
type Advice struct {
	Key         string
	Title       string
	Message     string
	Severity    Severity
	KV          []KV
	TimestampMs int64
}

// Context is the read-only view a rule gets for one event.
type Context struct {
	State     *combat.State
	Identity  identity.Identity
	Intensity int
	NowMs     int64
	MajorCDs  []int
	AMSpells  []int
}

const (
	avoidableMinHits = 2

	gcdGapThresholdMs = 2_500
	gcdGapMinInt      = 3

	driftThresholdMs = 8_000

	interruptSuccessMinInt = 2
	interruptMissMinInt    = 3

	defensiveWindowMs     = 5_000
	defensiveDamageFloor  = 20_000
	defensiveTimingMinInt = 2
)

func containsSpell(ids []int, spellID int) bool {
	for _, id := range ids {
		if id == spellID {
			return true
		}
	}
	return false
}

// IsCoachedEvent reports whether the event names guid as its actor (casts,
// heals, interrupts, failures, starts) or its victim (damage taken).
// Deaths and encounter markers always pass.
func IsCoachedEvent(e events.Event, guid string) bool {
	switch ev := e.(type) {
	case events.SpellCastSuccess:
		return ev.SourceGUID == guid
	case events.SpellCastStart:
		return ev.SourceGUID == guid
	case events.SpellCastFailed:
		return ev.SourceGUID == guid
	case events.SpellHeal:
		return ev.SourceGUID == guid
	case events.SpellInterrupted:
		return ev.SourceGUID == guid
	case events.SpellDamage:
		return ev.DestGUID == guid
	case events.SwingDamage:
		return ev.DestGUID == guid
	case events.UnitDied, events.EncounterStart, events.EncounterEnd:
		return true
	}
	return false
}

// Evaluate runs both passes in their fixed order: the enemy pass (gated
// only on being in combat), then the coached pass (gated on the event
// naming the coached player). Candidates come back in firing order.
func Evaluate(e events.Event, ctx *Context) []Advice {
	var out []Advice

	if ctx.State.InCombat {
		out = append(out, InterruptMiss(e, ctx)...)
	}

	if ctx.State.PlayerGUID != "" && IsCoachedEvent(e, ctx.State.PlayerGUID) {
		out = append(out, AvoidableRepeat(e, ctx)...)
		out = append(out, GCDGap(e, ctx)...)
		out = append(out, CooldownDrift(e, ctx)...)
		out = append(out, InterruptSuccess(e, ctx)...)
		out = append(out, DefensiveTiming(e, ctx)...)
	}

	return out
}

// AvoidableRepeat fires when the coached player is hit by the same spell
// twice or more in one pull.
func AvoidableRepeat(e events.Event, ctx *Context) []Advice {
	ev, ok := e.(events.SpellDamage)
	if !ok || ev.DestGUID != ctx.State.PlayerGUID {
		return nil
	}
	hits := ctx.State.Avoidable.HitCount(ev.SpellID)
	if hits < avoidableMinHits {
		return nil
	}
	return []Advice{{
		Key:      "avoidable_repeat",
		Title:    "Avoidable damage repeating",
		Message:  fmt.Sprintf("%s: %d hits this pull (%d dmg last hit). Adjust position before next overlap.", ev.SpellName, hits, ev.Amount),
		Severity: SeverityBad,
		KV: []KV{
			{"hits", fmt.Sprintf("%d", hits)},
			{"spell", ev.SpellName},
			{"spell_id", fmt.Sprintf("%d", ev.SpellID)},
		},
		TimestampMs: ctx.NowMs,
	}}
}

// GCDGap fires when the gap that just ended between two coached casts
// reaches the threshold. Quiet below intensity 3.
func GCDGap(e events.Event, ctx *Context) []Advice {
	ev, ok := e.(events.SpellCastSuccess)
	if !ok || ev.SourceGUID != ctx.State.PlayerGUID {
		return nil
	}
	if ctx.Intensity < gcdGapMinInt {
		return nil
	}
	gap := ctx.State.GCD.CurrentGapMs
	if gap < gcdGapThresholdMs {
		return nil
	}
	gapS := float64(gap) / 1000.0
	return []Advice{{
		Key:      "gcd_gap",
		Title:    "Large GCD gap",
		Message:  fmt.Sprintf("You had a %.1fs gap. Pre-position during mechanics and use a mobile filler.", gapS),
		Severity: SeverityWarn,
		KV: []KV{
			{"gap", fmt.Sprintf("%.1fs", gapS)},
			{"phase", fmt.Sprintf("P%d", ctx.State.PullElapsedMs(ctx.NowMs)/60_000+1)},
		},
		TimestampMs: ctx.NowMs,
	}}
}

// CooldownDrift fires once per major cooldown per pull, on its first use,
// when that use lands well past pull start. It only reasons from observed
// casts; a cooldown never seen this pull never triggers it.
func CooldownDrift(e events.Event, ctx *Context) []Advice {
	ev, ok := e.(events.SpellCastSuccess)
	if !ok || ev.SourceGUID != ctx.State.PlayerGUID {
		return nil
	}
	if !containsSpell(ctx.MajorCDs, ev.SpellID) {
		return nil
	}
	elapsed := ctx.State.PullElapsedMs(ctx.NowMs)
	if elapsed < driftThresholdMs {
		return nil
	}
	// First use this pull: exactly one recorded cast, and it is this one.
	if ctx.State.Cooldowns.UseCount(ev.SpellID) != 1 || ctx.State.Cooldowns.LastUsedMs(ev.SpellID) != ctx.NowMs {
		return nil
	}
	driftS := float64(elapsed) / 1000.0
	return []Advice{{
		Key:      "cooldown_drift",
		Title:    "Major cooldown used late",
		Message:  fmt.Sprintf("%s drifted by ~%.0fs into the pull. Next pull: use on pull, then on cooldown.", ev.SpellName, driftS),
		Severity: SeverityWarn,
		KV: []KV{
			{"drift", fmt.Sprintf("%.1fs", driftS)},
			{"spell", ev.SpellName},
		},
		TimestampMs: ctx.NowMs,
	}}
}

// InterruptSuccess acknowledges a landed kick. Per-spell key so each
// distinct spell is celebrated without spamming repeats of the same one.
func InterruptSuccess(e events.Event, ctx *Context) []Advice {
	ev, ok := e.(events.SpellInterrupted)
	if !ok || ev.SourceGUID != ctx.State.PlayerGUID {
		return nil
	}
	if ctx.Intensity < interruptSuccessMinInt {
		return nil
	}
	return []Advice{{
		Key:      fmt.Sprintf("interrupt_success_%d", ev.InterruptedSpellID),
		Title:    "Interrupt!",
		Message:  fmt.Sprintf("Good kick — %s stopped.", ev.InterruptedSpell),
		Severity: SeverityGood,
		KV: []KV{
			{"spell", ev.InterruptedSpell},
			{"id", fmt.Sprintf("%d", ev.InterruptedSpellID)},
		},
		TimestampMs: ctx.NowMs,
	}}
}

// InterruptMiss fires when an enemy completes a cast the player has
// interrupted before this session. Evidence-based: the interruptible set is
// learned from observed SpellInterrupted events, never assumed.
func InterruptMiss(e events.Event, ctx *Context) []Advice {
	ev, ok := e.(events.SpellCastSuccess)
	if !ok {
		return nil
	}
	if ctx.State.PlayerGUID != "" && ev.SourceGUID == ctx.State.PlayerGUID {
		return nil
	}
	if !strings.HasPrefix(ev.SourceGUID, events.GUIDPrefixCreature) && !strings.HasPrefix(ev.SourceGUID, events.GUIDPrefixVehicle) {
		return nil
	}
	if !ctx.State.Interrupts.IsInterruptible(ev.SpellID) {
		return nil
	}
	if ctx.Intensity < interruptMissMinInt {
		return nil
	}
	return []Advice{{
		Key:      fmt.Sprintf("interrupt_miss_%d", ev.SpellID),
		Title:    "Missed Interrupt",
		Message:  fmt.Sprintf("%s went through — you can kick this.", ev.SpellName),
		Severity: SeverityBad,
		KV: []KV{
			{"spell", ev.SpellName},
			{"spell_id", fmt.Sprintf("%d", ev.SpellID)},
		},
		TimestampMs: ctx.NowMs,
	}}
}

// DefensiveTiming praises an active-mitigation cast under real damage
// pressure: at least defensiveDamageFloor taken in the trailing window.
func DefensiveTiming(e events.Event, ctx *Context) []Advice {
	if len(ctx.AMSpells) == 0 {
		return nil
	}
	ev, ok := e.(events.SpellCastSuccess)
	if !ok || ev.SourceGUID != ctx.State.PlayerGUID {
		return nil
	}
	if !containsSpell(ctx.AMSpells, ev.SpellID) {
		return nil
	}
	if ctx.Intensity < defensiveTimingMinInt {
		return nil
	}
	recent := ctx.State.DamageTaken.RecentDamage(ctx.NowMs, defensiveWindowMs)
	if recent < defensiveDamageFloor {
		return nil
	}
	return []Advice{{
		Key:      fmt.Sprintf("defensive_timing_%d", ev.SpellID),
		Title:    "Good AM Timing",
		Message:  fmt.Sprintf("%s used under pressure — %dk damage in the last 5s.", ev.SpellName, recent/1000),
		Severity: SeverityGood,
		KV: []KV{
			{"spell", ev.SpellName},
			{"recent_dmg", fmt.Sprintf("%dk", recent/1000)},
		},
		TimestampMs: ctx.NowMs,
	}}
}
