package events

// Parses raw combat log lines into typed Events.
//
// Combat log wire format (not under our control):
//
//	M/D HH:MM:SS.FFFF  SUBEVENT,SOURCEGUID,"Source Name",SOURCEFLAGS,SOURCERAIDFLAGS,
//	                   DESTGUID,"Dest Name",DESTFLAGS,DESTRAIDFLAGS,[spell prefix...],[suffix...]
//
// The timestamp ends at the first double-space; the remainder is CSV with
// double-quoted fields that may contain commas. Field indices are fixed
// within a layout. Older game builds inserted a "hidecaster" field between
// the subevent token and the source GUID, shifting every later index by
// one; the legacy flag selects that layout.
//
// Current-layout indices (0-based):
//
//	[0]  subevent        [5]  dest GUID       [9]  spell ID
//	[1]  source GUID     [6]  dest name       [10] spell name
//	[2]  source name     [7]  dest flags      [11] spell school
//	[3]  source flags    [8]  dest raid flags [12+] subevent-specific
//	[4]  source raid flags
//
// SWING_* events carry no spell prefix, so their suffix starts at [9].
// ENCOUNTER_* events have no unit block at all; their fields follow the
// subevent token directly and are layout-independent.

import (
	"strconv"
	"strings"
)

// maxFields sizes the field slice; enough for every subevent we decode.
const maxFields = 32

// Parser turns raw log lines into Events. The zero value parses the
// current field layout; set Legacy for pre-rework logs.
type Parser struct {
	Legacy bool
}

func NewParser() *Parser {
	return &Parser{}
}

// parseTimestamp converts "M/D HH:MM:SS.FFFF" (optionally "M/D/YYYY ...")
// into milliseconds since midnight. The date is discarded; all downstream
// arithmetic is relative.
func parseTimestamp(s string) (int64, bool) {
	sep := strings.LastIndexByte(s, ' ')
	if sep < 0 {
		return 0, false
	}
	clock := s[sep+1:]

	parts := strings.SplitN(clock, ":", 3)
	if len(parts) != 3 {
		return 0, false
	}
	h, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}

	secStr, fracStr, hasFrac := strings.Cut(parts[2], ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return 0, false
	}

	var ms int64
	if hasFrac && fracStr != "" {
		frac, err := strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return 0, false
		}
		// Normalise an arbitrary-precision fraction to milliseconds.
		switch n := len(fracStr); {
		case n <= 3:
			ms = frac
			for i := n; i < 3; i++ {
				ms *= 10
			}
		default:
			ms = frac
			for i := 3; i < n; i++ {
				ms /= 10
			}
		}
	}

	return (h*3600+m*60+sec)*1000 + ms, true
}

// splitFields splits the CSV payload respecting double-quoted fields.
// Quotes are preserved in the returned slice; unquote strips them on
// known-name fields.
func splitFields(payload string) []string {
	fields := make([]string, 0, maxFields)
	var (
		start    int
		inQuotes bool
	)
	for i := 0; i < len(payload); i++ {
		switch payload[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				fields = append(fields, payload[start:i])
				start = i + 1
			}
		}
	}
	return append(fields, payload[start:])
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}

func parseInt(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	return v, err == nil
}

func parseAmount(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

// field returns fields[i] or "" when the line is shorter than expected.
func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

// ParseLine parses one raw log line. A malformed line or an unrecognised
// subevent yields (nil, false); the caller drops it and moves on.
func (p *Parser) ParseLine(raw string) (Event, bool) {
	sep := strings.Index(raw, "  ")
	if sep < 0 {
		return nil, false
	}
	ts, ok := parseTimestamp(raw[:sep])
	if !ok {
		return nil, false
	}
	f := splitFields(raw[sep+2:])
	if len(f) == 0 {
		return nil, false
	}

	// Legacy logs shift every unit/spell field by the hidecaster column.
	off := 0
	if p.Legacy {
		off = 1
	}

	srcGUID := unquote(field(f, 1+off))
	srcName := unquote(field(f, 2+off))
	dstGUID := unquote(field(f, 5+off))
	dstName := unquote(field(f, 6+off))

	switch f[0] {
	case "SPELL_DAMAGE", "SPELL_PERIODIC_DAMAGE", "RANGE_DAMAGE":
		spellID, ok := parseInt(field(f, 9+off))
		if !ok {
			return nil, false
		}
		amount, ok := parseAmount(field(f, 13+off))
		if !ok {
			return nil, false
		}
		return SpellDamage{
			Ts:         ts,
			SourceGUID: srcGUID,
			SourceName: srcName,
			DestGUID:   dstGUID,
			DestName:   dstName,
			SpellID:    spellID,
			SpellName:  unquote(field(f, 10+off)),
			Amount:     amount,
		}, true

	case "SWING_DAMAGE":
		amount, ok := parseAmount(field(f, 11+off))
		if !ok {
			return nil, false
		}
		return SwingDamage{Ts: ts, SourceGUID: srcGUID, DestGUID: dstGUID, Amount: amount}, true

	case "SPELL_CAST_SUCCESS":
		spellID, ok := parseInt(field(f, 9+off))
		if !ok {
			return nil, false
		}
		return SpellCastSuccess{
			Ts:         ts,
			SourceGUID: srcGUID,
			SourceName: srcName,
			SpellID:    spellID,
			SpellName:  unquote(field(f, 10+off)),
		}, true

	case "SPELL_CAST_START":
		spellID, ok := parseInt(field(f, 9+off))
		if !ok {
			return nil, false
		}
		return SpellCastStart{
			Ts:         ts,
			SourceGUID: srcGUID,
			SourceName: srcName,
			SpellID:    spellID,
			SpellName:  unquote(field(f, 10+off)),
		}, true

	case "SPELL_CAST_FAILED":
		spellID, ok := parseInt(field(f, 9+off))
		if !ok {
			return nil, false
		}
		return SpellCastFailed{
			Ts:         ts,
			SourceGUID: srcGUID,
			SourceName: srcName,
			SpellID:    spellID,
			SpellName:  unquote(field(f, 10+off)),
			Reason:     unquote(field(f, 12+off)),
		}, true

	case "SPELL_HEAL", "SPELL_PERIODIC_HEAL":
		spellID, ok := parseInt(field(f, 9+off))
		if !ok {
			return nil, false
		}
		amount, ok := parseAmount(field(f, 12+off))
		if !ok {
			return nil, false
		}
		overhealing, _ := parseAmount(field(f, 13+off))
		return SpellHeal{
			Ts:          ts,
			SourceGUID:  srcGUID,
			DestGUID:    dstGUID,
			SpellID:     spellID,
			Amount:      amount,
			Overhealing: overhealing,
		}, true

	case "SPELL_INTERRUPT":
		interruptedID, ok := parseInt(field(f, 12+off))
		if !ok {
			return nil, false
		}
		return SpellInterrupted{
			Ts:                 ts,
			SourceGUID:         srcGUID,
			TargetGUID:         dstGUID,
			InterruptedSpellID: interruptedID,
			InterruptedSpell:   unquote(field(f, 13+off)),
		}, true

	case "UNIT_DIED":
		if dstGUID == "" {
			return nil, false
		}
		return UnitDied{Ts: ts, DestGUID: dstGUID, DestName: dstName}, true

	case "ENCOUNTER_START":
		// Encounter markers have no unit block; fields follow the token.
		encID, ok := parseInt(field(f, 1))
		if !ok {
			return nil, false
		}
		diffID, _ := parseInt(field(f, 3))
		groupSize, _ := parseInt(field(f, 4))
		return EncounterStart{
			Ts:            ts,
			EncounterID:   encID,
			EncounterName: unquote(field(f, 2)),
			DifficultyID:  diffID,
			GroupSize:     groupSize,
		}, true

	case "ENCOUNTER_END":
		encID, ok := parseInt(field(f, 1))
		if !ok {
			return nil, false
		}
		return EncounterEnd{
			Ts:            ts,
			EncounterID:   encID,
			EncounterName: unquote(field(f, 2)),
			Success:       field(f, 5) == "1",
		}, true
	}

	// Unknown subevent; newer game builds add these freely.
	return nil, false
}

// Run is the parser pipeline stage: drain raw lines, forward typed events,
// drop everything else. Closes out when in closes.
func Run(in <-chan string, out chan<- Event, p *Parser) {
	defer close(out)
	for line := range in {
		if ev, ok := p.ParseLine(line); ok {
			out <- ev
		}
	}
}
