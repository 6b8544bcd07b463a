package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// GlobalFlags carries the raw persistent flag values before merging.
// Durations stay as strings so an empty value means "not set".
type GlobalFlags struct {
	ConfigPath string
	JSON       bool
	Plain      bool
	Timeout    string
	Retries    int
	BackendURL string
	UserID     string
	BotID      string
	NoCache    bool
	Cooldown   string
}

type Settings struct {
	OutputMode string
	Timeout    time.Duration
	Retries    int

	BackendURL string
	TokenPath  string
	TokenTTL   time.Duration
	BotID      string
	UserID     string

	TokenListURL  string
	MarketDataURL string
	DirectoryTTL  time.Duration

	CacheEnabled     bool
	SnapshotPath     string
	SnapshotLockPath string

	Cooldown time.Duration
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Backend struct {
		URL       string `yaml:"url"`
		TokenPath string `yaml:"token_path"`
		TokenTTL  string `yaml:"token_ttl"`
		BotID     string `yaml:"bot_id"`
	} `yaml:"backend"`
	Directory struct {
		ListURL   string `yaml:"list_url"`
		MarketURL string `yaml:"market_url"`
		TTL       string `yaml:"ttl"`
	} `yaml:"directory"`
	Cache struct {
		Enabled  *bool  `yaml:"enabled"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"cache"`
	Cooldown string `yaml:"cooldown"`
}

type envConfig struct {
	Output     string        `env:"KOI_OUTPUT"`
	Timeout    time.Duration `env:"KOI_TIMEOUT"`
	Retries    *int          `env:"KOI_RETRIES"`
	BackendURL string        `env:"KOI_BACKEND_URL"`
	TokenPath  string        `env:"KOI_TOKEN_PATH"`
	TokenTTL   time.Duration `env:"KOI_TOKEN_TTL"`
	BotID      string        `env:"KOI_BOT_ID"`
	UserID     string        `env:"KOI_USER_ID"`
	ListURL    string        `env:"KOI_TOKEN_LIST_URL"`
	MarketURL  string        `env:"KOI_MARKET_URL"`
	NoCache    *bool         `env:"KOI_NO_CACHE"`
	CachePath  string        `env:"KOI_CACHE_PATH"`
	LockPath   string        `env:"KOI_CACHE_LOCK_PATH"`
	Cooldown   time.Duration `env:"KOI_COOLDOWN"`
}

// Load merges settings in ascending precedence: built-in defaults, the
// YAML config file, KOI_* environment variables, then flags.
func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.TokenTTL <= 0 {
		settings.TokenTTL = 15 * time.Minute
	}
	if settings.Cooldown < 0 {
		settings.Cooldown = 0
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	snapPath, lockPath, err := defaultSnapshotPaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:       "json",
		Timeout:          10 * time.Second,
		Retries:          2,
		TokenTTL:         15 * time.Minute,
		DirectoryTTL:     6 * time.Hour,
		CacheEnabled:     true,
		SnapshotPath:     snapPath,
		SnapshotLockPath: lockPath,
		Cooldown:         2 * time.Second,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "koi", "config.yaml"), nil
}

func defaultSnapshotPaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "koi")
	return filepath.Join(dir, "snapshots.db"), filepath.Join(dir, "snapshots.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Backend.URL != "" {
		settings.BackendURL = cfg.Backend.URL
	}
	if cfg.Backend.TokenPath != "" {
		settings.TokenPath = cfg.Backend.TokenPath
	}
	if cfg.Backend.TokenTTL != "" {
		d, err := time.ParseDuration(cfg.Backend.TokenTTL)
		if err != nil {
			return fmt.Errorf("config backend.token_ttl: %w", err)
		}
		settings.TokenTTL = d
	}
	if cfg.Backend.BotID != "" {
		settings.BotID = cfg.Backend.BotID
	}
	if cfg.Directory.ListURL != "" {
		settings.TokenListURL = cfg.Directory.ListURL
	}
	if cfg.Directory.MarketURL != "" {
		settings.MarketDataURL = cfg.Directory.MarketURL
	}
	if cfg.Directory.TTL != "" {
		d, err := time.ParseDuration(cfg.Directory.TTL)
		if err != nil {
			return fmt.Errorf("config directory.ttl: %w", err)
		}
		settings.DirectoryTTL = d
	}
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.Path != "" {
		settings.SnapshotPath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.SnapshotLockPath = cfg.Cache.LockPath
	}
	if cfg.Cooldown != "" {
		d, err := time.ParseDuration(cfg.Cooldown)
		if err != nil {
			return fmt.Errorf("config cooldown: %w", err)
		}
		settings.Cooldown = d
	}

	return nil
}

func applyEnv(settings *Settings) error {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout > 0 {
		settings.Timeout = cfg.Timeout
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.BackendURL != "" {
		settings.BackendURL = cfg.BackendURL
	}
	if cfg.TokenPath != "" {
		settings.TokenPath = cfg.TokenPath
	}
	if cfg.TokenTTL > 0 {
		settings.TokenTTL = cfg.TokenTTL
	}
	if cfg.BotID != "" {
		settings.BotID = cfg.BotID
	}
	if cfg.UserID != "" {
		settings.UserID = cfg.UserID
	}
	if cfg.ListURL != "" {
		settings.TokenListURL = cfg.ListURL
	}
	if cfg.MarketURL != "" {
		settings.MarketDataURL = cfg.MarketURL
	}
	if cfg.NoCache != nil {
		settings.CacheEnabled = !*cfg.NoCache
	}
	if cfg.CachePath != "" {
		settings.SnapshotPath = cfg.CachePath
	}
	if cfg.LockPath != "" {
		settings.SnapshotLockPath = cfg.LockPath
	}
	if cfg.Cooldown > 0 {
		settings.Cooldown = cfg.Cooldown
	}

	return nil
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if strings.TrimSpace(flags.BackendURL) != "" {
		settings.BackendURL = strings.TrimSpace(flags.BackendURL)
	}
	if strings.TrimSpace(flags.UserID) != "" {
		settings.UserID = strings.TrimSpace(flags.UserID)
	}
	if strings.TrimSpace(flags.BotID) != "" {
		settings.BotID = strings.TrimSpace(flags.BotID)
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	if flags.Cooldown != "" {
		d, err := time.ParseDuration(flags.Cooldown)
		if err != nil {
			return fmt.Errorf("parse --cooldown: %w", err)
		}
		settings.Cooldown = d
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
