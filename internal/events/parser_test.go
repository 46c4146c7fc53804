package events

import (
	"fmt"
	"testing"
)

const (
	spellDamageLine = `5/21 20:14:33.456  SPELL_DAMAGE,Creature-0-4372-2549-28242-203625-000,"Magmorax",0xa48,0x0,Player-1234-ABCDEF,"Stonebraid",0x511,0x0,12345,"Shadow Surge",0x20,0,55000,0,0,0,0,nil,nil,nil`
	castSuccessLine = `5/21 20:14:35.100  SPELL_CAST_SUCCESS,Player-1234-ABCDEF,"Stonebraid",0x511,0x0,0000000000000000,"",0x80,0x0,31884,"Avenging Wrath",0x2`
	castStartLine   = `5/21 20:14:36.000  SPELL_CAST_START,Creature-0-4372-2549-28242-203625-000,"Flamecaller Acolyte",0xa48,0x0,0000000000000000,"",0x80,0x0,55555,"Dark Mending",0x20`
	castFailedLine  = `5/21 20:14:36.500  SPELL_CAST_FAILED,Player-1234-ABCDEF,"Stonebraid",0x511,0x0,0000000000000000,"",0x80,0x0,133,"Fireball",0x4,"Not enough mana"`
	healLine        = `5/21 20:14:37.250  SPELL_HEAL,Player-1234-ABCDEF,"Stonebraid",0x511,0x0,Player-1234-ABCDEF,"Stonebraid",0x511,0x0,19750,"Flash of Light",0x2,35000,12000,0,nil`
	swingLine       = `5/21 20:14:38.000  SWING_DAMAGE,Creature-0-4372-2549-28242-203625-000,"Magmorax",0xa48,0x0,Player-1234-ABCDEF,"Stonebraid",0x511,0x0,0,0,18000,0,0,0,0,nil,nil,nil`
	interruptLine   = `5/21 20:14:39.000  SPELL_INTERRUPT,Player-1234-ABCDEF,"Stonebraid",0x511,0x0,Creature-0-4372-2549-28242-203625-000,"Flamecaller Acolyte",0xa48,0x0,96231,"Rebuke",0x1,55555,"Dark Mending",0x20`
	unitDiedLine    = `5/21 20:15:00.000  UNIT_DIED,0000000000000000,"",0x80,0x0,Creature-0-4372-2549-28242-203625-000,"Magmorax",0xa48,0x0,0`
	encStartLine    = `5/21 20:16:00.000  ENCOUNTER_START,2902,"Ulgrax the Devourer",16,20,2657`
	encEndLine      = `5/21 20:26:05.049  ENCOUNTER_END,2902,"Ulgrax the Devourer",16,20,1,605049`
)

func mustParse(t *testing.T, p *Parser, line string) Event {
	t.Helper()
	ev, ok := p.ParseLine(line)
	if !ok {
		t.Fatalf("ParseLine(%q) did not produce an event", line)
	}
	return ev
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{"millis", "5/21 20:14:33.456", ((20*3600 + 14*60 + 33) * 1000) + 456},
		{"single digit fraction", "5/21 20:14:33.4", ((20*3600 + 14*60 + 33) * 1000) + 400},
		{"two digit fraction", "5/21 20:14:33.45", ((20*3600 + 14*60 + 33) * 1000) + 450},
		{"four digit fraction", "5/21 20:14:33.4567", ((20*3600 + 14*60 + 33) * 1000) + 456},
		{"no fraction", "5/21 20:14:33", (20*3600 + 14*60 + 33) * 1000},
		{"with year", "5/21/2025 00:00:01.001", 1001},
		{"midnight", "1/1 00:00:00.000", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTimestamp(tt.in)
			if !ok {
				t.Fatalf("parseTimestamp(%q) failed", tt.in)
			}
			if got != tt.want {
				t.Errorf("parseTimestamp(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "20:14:33.456", "5/21 20:14", "5/21 aa:bb:cc"} {
		if _, ok := parseTimestamp(in); ok {
			t.Errorf("parseTimestamp(%q) should fail", in)
		}
	}
}

func TestSplitFieldsQuotedCommas(t *testing.T) {
	fields := splitFields(`UNIT_DIED,0000000000000000,"",0x80,0x0,Creature-0-1-1-1-1-000,"Smolderon, the Firelord",0xa48,0x0,0`)
	if len(fields) != 10 {
		t.Fatalf("got %d fields, want 10: %v", len(fields), fields)
	}
	if fields[6] != `"Smolderon, the Firelord"` {
		t.Errorf("quoted field = %q, want quotes preserved", fields[6])
	}
}

func TestParseSpellDamage(t *testing.T) {
	ev := mustParse(t, NewParser(), spellDamageLine)
	d, ok := ev.(SpellDamage)
	if !ok {
		t.Fatalf("wrong variant: %T", ev)
	}
	if d.SpellID != 12345 || d.SpellName != "Shadow Surge" || d.Amount != 55000 {
		t.Errorf("unexpected fields: %+v", d)
	}
	if d.SourceName != "Magmorax" || d.DestName != "Stonebraid" {
		t.Errorf("unexpected names: %+v", d)
	}
	if d.DestGUID != "Player-1234-ABCDEF" {
		t.Errorf("dest GUID = %q", d.DestGUID)
	}
}

func TestParseCastSuccess(t *testing.T) {
	ev := mustParse(t, NewParser(), castSuccessLine)
	c, ok := ev.(SpellCastSuccess)
	if !ok {
		t.Fatalf("wrong variant: %T", ev)
	}
	if c.SpellID != 31884 || c.SpellName != "Avenging Wrath" || c.SourceName != "Stonebraid" {
		t.Errorf("unexpected fields: %+v", c)
	}
}

func TestParseCastStart(t *testing.T) {
	ev := mustParse(t, NewParser(), castStartLine)
	c, ok := ev.(SpellCastStart)
	if !ok {
		t.Fatalf("wrong variant: %T", ev)
	}
	if c.SpellID != 55555 || c.SpellName != "Dark Mending" {
		t.Errorf("unexpected fields: %+v", c)
	}
}

func TestParseCastFailed(t *testing.T) {
	ev := mustParse(t, NewParser(), castFailedLine)
	c, ok := ev.(SpellCastFailed)
	if !ok {
		t.Fatalf("wrong variant: %T", ev)
	}
	if c.Reason != "Not enough mana" {
		t.Errorf("reason = %q", c.Reason)
	}
}

func TestParseHeal(t *testing.T) {
	ev := mustParse(t, NewParser(), healLine)
	h, ok := ev.(SpellHeal)
	if !ok {
		t.Fatalf("wrong variant: %T", ev)
	}
	if h.SpellID != 19750 || h.Amount != 35000 || h.Overhealing != 12000 {
		t.Errorf("unexpected fields: %+v", h)
	}
}

func TestParseSwingDamage(t *testing.T) {
	ev := mustParse(t, NewParser(), swingLine)
	s, ok := ev.(SwingDamage)
	if !ok {
		t.Fatalf("wrong variant: %T", ev)
	}
	if s.Amount != 18000 || s.DestGUID != "Player-1234-ABCDEF" {
		t.Errorf("unexpected fields: %+v", s)
	}
}

func TestParseInterrupt(t *testing.T) {
	ev := mustParse(t, NewParser(), interruptLine)
	i, ok := ev.(SpellInterrupted)
	if !ok {
		t.Fatalf("wrong variant: %T", ev)
	}
	if i.InterruptedSpellID != 55555 || i.InterruptedSpell != "Dark Mending" {
		t.Errorf("unexpected fields: %+v", i)
	}
	if i.SourceGUID != "Player-1234-ABCDEF" {
		t.Errorf("source GUID = %q", i.SourceGUID)
	}
}

func TestParseUnitDied(t *testing.T) {
	ev := mustParse(t, NewParser(), unitDiedLine)
	u, ok := ev.(UnitDied)
	if !ok {
		t.Fatalf("wrong variant: %T", ev)
	}
	if u.DestName != "Magmorax" {
		t.Errorf("dest name = %q", u.DestName)
	}
}

func TestParseEncounterMarkers(t *testing.T) {
	ev := mustParse(t, NewParser(), encStartLine)
	s, ok := ev.(EncounterStart)
	if !ok {
		t.Fatalf("wrong variant: %T", ev)
	}
	if s.EncounterID != 2902 || s.EncounterName != "Ulgrax the Devourer" || s.DifficultyID != 16 || s.GroupSize != 20 {
		t.Errorf("unexpected fields: %+v", s)
	}

	ev = mustParse(t, NewParser(), encEndLine)
	e, ok := ev.(EncounterEnd)
	if !ok {
		t.Fatalf("wrong variant: %T", ev)
	}
	if !e.Success {
		t.Errorf("success = false, want true")
	}
}

func TestParseLegacyLayout(t *testing.T) {
	// Same cast-success line with the hidecaster column after the token.
	legacy := `5/21 20:14:35.100  SPELL_CAST_SUCCESS,0,Player-1234-ABCDEF,"Stonebraid",0x511,0x0,0000000000000000,"",0x80,0x0,31884,"Avenging Wrath",0x2`
	p := &Parser{Legacy: true}
	ev := mustParse(t, p, legacy)
	c, ok := ev.(SpellCastSuccess)
	if !ok {
		t.Fatalf("wrong variant: %T", ev)
	}
	if c.SpellID != 31884 || c.SourceGUID != "Player-1234-ABCDEF" {
		t.Errorf("unexpected fields: %+v", c)
	}
}

func TestParseDropsGarbage(t *testing.T) {
	p := NewParser()
	for _, line := range []string{
		"",
		"not a log line",
		"5/21 20:14:33.456  SOME_FUTURE_SUBEVENT,a,b,c",
		"5/21 20:14:33.456  SPELL_DAMAGE,too,short",
		`5/21 20:14:33.456  SPELL_DAMAGE,Creature-0-1-000,"X",0xa48,0x0,Player-1,"Y",0x511,0x0,notanumber,"Z",0x20,0,55000`,
	} {
		if ev, ok := p.ParseLine(line); ok {
			t.Errorf("ParseLine(%q) = %+v, want drop", line, ev)
		}
	}
}

// formatCastSuccess renders an event back into the current wire layout so
// parse(format(e)) can be checked on the fields the variant preserves.
func formatCastSuccess(e SpellCastSuccess) string {
	h := e.Ts / 3600000
	m := e.Ts / 60000 % 60
	s := e.Ts / 1000 % 60
	ms := e.Ts % 1000
	return fmt.Sprintf(`5/21 %02d:%02d:%02d.%03d  SPELL_CAST_SUCCESS,%s,"%s",0x511,0x0,0000000000000000,"",0x80,0x0,%d,"%s",0x1`,
		h, m, s, ms, e.SourceGUID, e.SourceName, e.SpellID, e.SpellName)
}

func TestCastSuccessRoundTrip(t *testing.T) {
	want := SpellCastSuccess{
		Ts:         73123456%86400000 + 456, // arbitrary in-day timestamp
		SourceGUID: "Player-1302-0A1B2C3D",
		SourceName: "Brewfist",
		SpellID:    322507,
		SpellName:  "Celestial Brew",
	}
	got, ok := NewParser().ParseLine(formatCastSuccess(want))
	if !ok {
		t.Fatal("round-trip parse failed")
	}
	if got != want {
		t.Errorf("round trip:\n got %+v\nwant %+v", got, want)
	}
}
