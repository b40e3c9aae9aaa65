package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// PathEnv names the environment variable holding the config file path.
const PathEnv = "TALISMANS_CONFIG"

// DefaultPath is used when PathEnv is unset.
const DefaultPath = "config/server.toml"

type Config struct {
	Server  ServerConfig  `toml:"server" envPrefix:"SERVER_"`
	Effects EffectsConfig `toml:"effects" envPrefix:"EFFECTS_"`
	Display DisplayConfig `toml:"display" envPrefix:"DISPLAY_"`
	Reload  ReloadConfig  `toml:"reload" envPrefix:"RELOAD_"`
	Journal JournalConfig `toml:"journal" envPrefix:"JOURNAL_"`
	Network NetworkConfig `toml:"network" envPrefix:"NETWORK_"`
	Logging LoggingConfig `toml:"logging" envPrefix:"LOGGING_"`
}

type ServerConfig struct {
	Name        string `toml:"name" env:"NAME"`
	HostVersion string `toml:"host_version" env:"HOST_VERSION"` // e.g. "1.16.5"
	DataDir     string `toml:"data_dir" env:"DATA_DIR"`
	ScriptsDir  string `toml:"scripts_dir" env:"SCRIPTS_DIR"`
	StartTime   int64  // set at boot, not from config
}

type EffectsConfig struct {
	DisabledWorlds  []string `toml:"disabled_worlds" env:"DISABLED_WORLDS" envSeparator:","`
	QualifyingSlots []string `toml:"qualifying_slots" env:"QUALIFYING_SLOTS" envSeparator:","` // hotbar, storage, armor, offhand, all
}

type DisplayConfig struct {
	Enabled  bool   `toml:"enabled" env:"ENABLED"`
	Secret   string `toml:"secret" env:"SECRET"`     // seal key; empty = random per process
	Language string `toml:"language" env:"LANGUAGE"` // BCP 47 tag for display-name casing
}

type ReloadConfig struct {
	Watch    bool          `toml:"watch" env:"WATCH"`
	Debounce time.Duration `toml:"debounce" env:"DEBOUNCE"`
}

type JournalConfig struct {
	Enabled       bool          `toml:"enabled" env:"ENABLED"`
	DSN           string        `toml:"dsn" env:"DSN"` // postgres://... or a SQLite file path
	Buffer        int           `toml:"buffer" env:"BUFFER"`
	BatchSize     int           `toml:"batch_size" env:"BATCH_SIZE"`
	FlushInterval time.Duration `toml:"flush_interval" env:"FLUSH_INTERVAL"`
	MaxOpenConns  int           `toml:"max_open_conns" env:"MAX_OPEN_CONNS"`
}

type NetworkConfig struct {
	TickRate time.Duration `toml:"tick_rate" env:"TICK_RATE"`
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"` // "json" or "console"
}

// Load reads the TOML file at path onto the defaults, then applies
// TALISMANS_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "TALISMANS_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// PathFromEnv returns the config path from TALISMANS_CONFIG or the default.
func PathFromEnv() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

func (c *Config) validate() error {
	if c.Server.HostVersion == "" {
		return errors.New("server.host_version is required")
	}
	if c.Server.DataDir == "" {
		return errors.New("server.data_dir is required")
	}
	if c.Network.TickRate <= 0 {
		return fmt.Errorf("network.tick_rate must be positive, got %s", c.Network.TickRate)
	}
	if c.Journal.Buffer <= 0 {
		return fmt.Errorf("journal.buffer must be positive, got %d", c.Journal.Buffer)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:        "talismans",
			HostVersion: "1.16.5",
			DataDir:     "data",
			ScriptsDir:  "scripts",
		},
		Effects: EffectsConfig{
			DisabledWorlds:  []string{},
			QualifyingSlots: []string{"hotbar", "storage", "offhand"},
		},
		Display: DisplayConfig{
			Enabled:  true,
			Language: "en",
		},
		Reload: ReloadConfig{
			Watch:    true,
			Debounce: 500 * time.Millisecond,
		},
		Journal: JournalConfig{
			Enabled:       true,
			DSN:           "data/journal.db",
			Buffer:        1024,
			BatchSize:     64,
			FlushInterval: 2 * time.Second,
			MaxOpenConns:  4,
		},
		Network: NetworkConfig{
			TickRate: 50 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
