package events

// Entity GUID prefixes used as a cheap entity-kind tag. Player GUIDs look
// like "Player-1234-ABCDEF", creatures like "Creature-0-4372-2549-...".
const (
	GUIDPrefixPlayer   = "Player-"
	GUIDPrefixCreature = "Creature-"
	GUIDPrefixVehicle  = "Vehicle-"
)

// Event is the closed set of combat log events the coaching engine cares
// about. Concrete variants are structs; consumers type-switch over them.
// Timestamps are milliseconds since midnight derived from the log clock and
// are only meaningful for relative calculations (pull timers, gaps,
// cooldown tracking).
type Event interface {
	TimestampMs() int64
	isEvent()
}

// SpellDamage covers SPELL_DAMAGE, SPELL_PERIODIC_DAMAGE and RANGE_DAMAGE.
type SpellDamage struct {
	Ts         int64
	SourceGUID string
	SourceName string
	DestGUID   string
	DestName   string
	SpellID    int
	SpellName  string
	Amount     int64
}

// SwingDamage is a SWING_DAMAGE auto-attack hit. Swings carry no spell
// prefix, so only the participants and the amount survive parsing.
type SwingDamage struct {
	Ts         int64
	SourceGUID string
	DestGUID   string
	Amount     int64
}

// SpellCastSuccess is a completed cast by any unit.
type SpellCastSuccess struct {
	Ts         int64
	SourceGUID string
	SourceName string
	SpellID    int
	SpellName  string
}

// SpellCastStart is the beginning of a cast with a cast time.
type SpellCastStart struct {
	Ts         int64
	SourceGUID string
	SourceName string
	SpellID    int
	SpellName  string
}

// SpellCastFailed is a cast the game client rejected (moving, out of range,
// not enough resources, ...). Reason is the client's display string.
type SpellCastFailed struct {
	Ts         int64
	SourceGUID string
	SourceName string
	SpellID    int
	SpellName  string
	Reason     string
}

// SpellHeal covers SPELL_HEAL and SPELL_PERIODIC_HEAL.
type SpellHeal struct {
	Ts          int64
	SourceGUID  string
	DestGUID    string
	SpellID     int
	Amount      int64
	Overhealing int64
}

// SpellInterrupted is a SPELL_INTERRUPT: source stopped target's cast of
// the interrupted spell.
type SpellInterrupted struct {
	Ts                 int64
	SourceGUID         string
	TargetGUID         string
	InterruptedSpellID int
	InterruptedSpell   string
}

// UnitDied reports a unit death.
type UnitDied struct {
	Ts       int64
	DestGUID string
	DestName string
}

// EncounterStart marks the beginning of a scripted boss encounter.
type EncounterStart struct {
	Ts            int64
	EncounterID   int
	EncounterName string
	DifficultyID  int
	GroupSize     int
}

// EncounterEnd marks the end of a scripted boss encounter. Success is true
// for a kill.
type EncounterEnd struct {
	Ts            int64
	EncounterID   int
	EncounterName string
	Success       bool
}

func (e SpellDamage) TimestampMs() int64      { return e.Ts }
func (e SwingDamage) TimestampMs() int64      { return e.Ts }
func (e SpellCastSuccess) TimestampMs() int64 { return e.Ts }
func (e SpellCastStart) TimestampMs() int64   { return e.Ts }
func (e SpellCastFailed) TimestampMs() int64  { return e.Ts }
func (e SpellHeal) TimestampMs() int64        { return e.Ts }
func (e SpellInterrupted) TimestampMs() int64 { return e.Ts }
func (e UnitDied) TimestampMs() int64         { return e.Ts }
func (e EncounterStart) TimestampMs() int64   { return e.Ts }
func (e EncounterEnd) TimestampMs() int64     { return e.Ts }

func (SpellDamage) isEvent()      {}
func (SwingDamage) isEvent()      {}
func (SpellCastSuccess) isEvent() {}
func (SpellCastStart) isEvent()   {}
func (SpellCastFailed) isEvent()  {}
func (SpellHeal) isEvent()        {}
func (SpellInterrupted) isEvent() {}
func (UnitDied) isEvent()         {}
func (EncounterStart) isEvent()   {}
func (EncounterEnd) isEvent()     {}

// SourceGUIDOf returns the GUID of the entity that performed the event, or
// "" when the variant has no actor (UnitDied, encounter markers).
func SourceGUIDOf(e Event) string {
	switch ev := e.(type) {
	case SpellDamage:
		return ev.SourceGUID
	case SwingDamage:
		return ev.SourceGUID
	case SpellCastSuccess:
		return ev.SourceGUID
	case SpellCastStart:
		return ev.SourceGUID
	case SpellCastFailed:
		return ev.SourceGUID
	case SpellHeal:
		return ev.SourceGUID
	case SpellInterrupted:
		return ev.SourceGUID
	}
	return ""
}

// DestGUIDOf returns the GUID of the entity on the receiving end, or ""
// when the variant has none.
func DestGUIDOf(e Event) string {
	switch ev := e.(type) {
	case SpellDamage:
		return ev.DestGUID
	case SwingDamage:
		return ev.DestGUID
	case SpellHeal:
		return ev.DestGUID
	case SpellInterrupted:
		return ev.TargetGUID
	case UnitDied:
		return ev.DestGUID
	}
	return ""
}
