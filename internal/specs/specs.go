package specs

// Spec profile library, embedded at build time from data/*.toml.
//
// Profiles provide the major-cooldown and active-mitigation spell IDs the
// cooldown_drift and defensive_timing rules key on. The library is static:
// lookup only, no lifecycle, no mutation.

import (
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

//go:embed data/*.toml
var specFiles embed.FS

type tomlFile struct {
	Spec tomlSpecMeta `toml:"spec"`
}

type tomlSpecMeta struct {
	Class            string                `toml:"class"`
	Spec             string                `toml:"spec"`
	Role             string                `toml:"role"`
	Description      string                `toml:"description"`
	Cooldowns        tomlCooldowns         `toml:"cooldowns"`
	ActiveMitigation *tomlActiveMitigation `toml:"active_mitigation"`
}

type tomlCooldowns struct {
	MajorCDSpellIDs []int `toml:"major_cd_spell_ids"`
}

type tomlActiveMitigation struct {
	AMSpellIDs []int `toml:"am_spell_ids"`
}

// Profile is one class/spec's coaching data.
type Profile struct {
	Class           string
	Spec            string
	Role            string
	MajorCDSpellIDs []int
	AMSpellIDs      []int
}

// Key is the canonical "CLASS/Spec" form used in config and display.
func (p Profile) Key() string {
	return fmt.Sprintf("%s/%s", p.Class, p.Spec)
}

var (
	parseOnce sync.Once
	profiles  []Profile
)

func all() []Profile {
	parseOnce.Do(func() {
		entries, err := specFiles.ReadDir("data")
		if err != nil {
			slog.Warn("could not read embedded spec data", "error", err)
			return
		}
		for _, entry := range entries {
			raw, err := specFiles.ReadFile("data/" + entry.Name())
			if err != nil {
				continue
			}
			var file tomlFile
			if err := toml.Unmarshal(raw, &file); err != nil {
				slog.Warn("failed to parse spec profile", "file", entry.Name(), "error", err)
				continue
			}
			p := Profile{
				Class:           file.Spec.Class,
				Spec:            file.Spec.Spec,
				Role:            file.Spec.Role,
				MajorCDSpellIDs: file.Spec.Cooldowns.MajorCDSpellIDs,
			}
			if file.Spec.ActiveMitigation != nil {
				p.AMSpellIDs = file.Spec.ActiveMitigation.AMSpellIDs
			}
			profiles = append(profiles, p)
		}
	})
	return profiles
}

// List returns every embedded profile.
func List() []Profile {
	return append([]Profile(nil), all()...)
}

// Load finds a profile by class and spec name, case-insensitively.
func Load(class, spec string) (Profile, bool) {
	for _, p := range all() {
		if strings.EqualFold(p.Class, class) && strings.EqualFold(p.Spec, spec) {
			return p, true
		}
	}
	return Profile{}, false
}

// LoadByKey finds a profile by its "CLASS/Spec" key.
func LoadByKey(key string) (Profile, bool) {
	class, spec, found := strings.Cut(key, "/")
	if !found {
		return Profile{}, false
	}
	return Load(class, spec)
}
