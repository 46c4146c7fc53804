package config

// Application configuration, persisted as TOML. Defaults live in viper so
// environment overrides (COACH_*) compose with the file. The UI block is
// stored for the settings/overlay collaborators; the core never interprets
// it beyond round-tripping.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// PanelPosition is an overlay panel's placement, owned by the UI.
type PanelPosition struct {
	ID      string `mapstructure:"id"`
	X       int    `mapstructure:"x"`
	Y       int    `mapstructure:"y"`
	Visible bool   `mapstructure:"visible"`
}

// UIConfig carries consumer-UI hints the core only persists.
type UIConfig struct {
	Panels      []PanelPosition   `mapstructure:"panels"`
	AudioVolume float64           `mapstructure:"audioVolume"`
	Hotkeys     map[string]string `mapstructure:"hotkeys"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxBackups int    `mapstructure:"maxBackups"`
}

type Config struct {
	// LogDir is the game's Logs directory; empty keeps the tailer idle.
	LogDir    string `mapstructure:"logDir"`
	LogPrefix string `mapstructure:"logPrefix"`
	LogSuffix string `mapstructure:"logSuffix"`

	// SidecarPath is the plugin's SavedVariables file.
	SidecarPath string `mapstructure:"sidecarPath"`

	// Intensity is the coaching volume, 1 (quiet) to 5 (aggressive).
	Intensity int `mapstructure:"intensity"`

	// PlayerFocus names the character to coach when the plugin is absent.
	PlayerFocus string `mapstructure:"playerFocus"`

	// SelectedSpec is a "CLASS/Spec" key into the embedded profiles.
	SelectedSpec string `mapstructure:"selectedSpec"`

	// MajorCDs / AMSpells override the profile spell lists when non-empty.
	MajorCDs []int `mapstructure:"majorCds"`
	AMSpells []int `mapstructure:"amSpells"`

	// LegacyParser selects the pre-rework combat log field layout.
	LegacyParser bool `mapstructure:"legacyParser"`

	DBPath  string        `mapstructure:"dbPath"`
	Logging LoggingConfig `mapstructure:"logging"`
	UI      UIConfig      `mapstructure:"ui"`
}

func defaultPanels() []PanelPosition {
	return []PanelPosition{
		{ID: "pull_clock", X: 20, Y: 20, Visible: true},
		{ID: "now_feed", X: 20, Y: 70, Visible: true},
		{ID: "timeline", X: 20, Y: 500, Visible: true},
		{ID: "stat_widgets", X: 20, Y: 670, Visible: true},
	}
}

// DefaultDataDir is where the database and log files land when the config
// does not say otherwise.
func DefaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "combatcoach")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logPrefix", "WoWCombatLog")
	v.SetDefault("logSuffix", ".txt")
	v.SetDefault("intensity", 3)
	v.SetDefault("dbPath", filepath.Join(DefaultDataDir(), "sessions.sqlite"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", filepath.Join(DefaultDataDir(), "combatcoach.log"))
	v.SetDefault("logging.maxBackups", 5)
	v.SetDefault("ui.audioVolume", 0.8)
}

// Load reads the config file (explicit path, or combatcoach.toml from the
// user config dir / working directory), applies env overrides, and
// validates. A missing file yields defaults.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("combatcoach")
		v.SetConfigType("toml")
		v.AddConfigPath(DefaultDataDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("COACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if configFile != "" {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file yet: first run, defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.UI.Panels) == 0 {
		cfg.UI.Panels = defaultPanels()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the engine cannot work with. Empty paths are
// allowed: the dependent subsystem idles and reports through connection
// status instead.
func (c *Config) Validate() error {
	if c.Intensity < 1 || c.Intensity > 5 {
		return fmt.Errorf("intensity must be between 1 and 5, got %d", c.Intensity)
	}
	if c.LogPrefix == "" {
		return fmt.Errorf("logPrefix must not be empty")
	}
	if c.LogSuffix == "" {
		return fmt.Errorf("logSuffix must not be empty")
	}
	return nil
}

// Save writes the config as TOML to path, creating directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("logDir", c.LogDir)
	v.Set("logPrefix", c.LogPrefix)
	v.Set("logSuffix", c.LogSuffix)
	v.Set("sidecarPath", c.SidecarPath)
	v.Set("intensity", c.Intensity)
	v.Set("playerFocus", c.PlayerFocus)
	v.Set("selectedSpec", c.SelectedSpec)
	v.Set("majorCds", c.MajorCDs)
	v.Set("amSpells", c.AMSpells)
	v.Set("legacyParser", c.LegacyParser)
	v.Set("dbPath", c.DBPath)
	v.Set("logging.level", c.Logging.Level)
	v.Set("logging.file", c.Logging.File)
	v.Set("logging.maxBackups", c.Logging.MaxBackups)
	v.Set("ui.audioVolume", c.UI.AudioVolume)
	v.Set("ui.hotkeys", c.UI.Hotkeys)

	panels := make([]map[string]any, 0, len(c.UI.Panels))
	for _, p := range c.UI.Panels {
		panels = append(panels, map[string]any{
			"id": p.ID, "x": p.X, "y": p.Y, "visible": p.Visible,
		})
	}
	v.Set("ui.panels", panels)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
