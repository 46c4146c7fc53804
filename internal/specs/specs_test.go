package specs

import "testing"

func TestListAllSpecs(t *testing.T) {
	all := List()
	// 13 classes x 3 specs, with Demon Hunter (2) and Druid (4) as the
	// oddities: the embedded set is fixed at 39 profiles.
	if len(all) != 39 {
		t.Fatalf("got %d profiles, want 39", len(all))
	}
	keys := make(map[string]bool, len(all))
	for _, p := range all {
		keys[p.Key()] = true
	}
	for _, want := range []string{
		"PALADIN/Retribution",
		"PRIEST/Holy",
		"WARRIOR/Protection",
		"MAGE/Fire",
		"DEATH_KNIGHT/Blood",
		"HUNTER/Beast Mastery",
	} {
		if !keys[want] {
			t.Errorf("missing profile %s", want)
		}
	}
}

func TestLoadPaladinRet(t *testing.T) {
	p, ok := Load("PALADIN", "Retribution")
	if !ok {
		t.Fatal("should load")
	}
	if len(p.MajorCDSpellIDs) == 0 {
		t.Error("no major cooldowns")
	}
	found := false
	for _, id := range p.MajorCDSpellIDs {
		if id == 31884 { // Avenging Wrath
			found = true
		}
	}
	if !found {
		t.Error("Avenging Wrath missing from major cooldowns")
	}
}

func TestLoadByKey(t *testing.T) {
	p, ok := LoadByKey("WARRIOR/Protection")
	if !ok {
		t.Fatal("should load")
	}
	found := false
	for _, id := range p.MajorCDSpellIDs {
		if id == 871 { // Shield Wall
			found = true
		}
	}
	if !found {
		t.Error("Shield Wall missing")
	}
	if p.Role != "tank" {
		t.Errorf("role = %q", p.Role)
	}
}

func TestCaseInsensitiveLookup(t *testing.T) {
	if _, ok := Load("paladin", "retribution"); !ok {
		t.Error("class/spec lookup should ignore case")
	}
	if _, ok := LoadByKey("warrior/protection"); !ok {
		t.Error("key lookup should ignore case")
	}
}

func TestUnknownSpec(t *testing.T) {
	if _, ok := Load("TINKER", "Mechagnome"); ok {
		t.Error("unknown class should not load")
	}
	if _, ok := LoadByKey("no-slash"); ok {
		t.Error("malformed key should not load")
	}
}
