package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	data := "output: plain\nretries: 1\nbackend:\n  url: https://file.example\n  bot_id: file-bot\n"
	if err := os.WriteFile(configPath, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("KOI_OUTPUT", "json")
	t.Setenv("KOI_BACKEND_URL", "https://env.example")
	flags := GlobalFlags{ConfigPath: configPath, Plain: true, Retries: 5, BackendURL: "https://flag.example"}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if settings.Retries != 5 {
		t.Fatalf("expected retries from flags, got %d", settings.Retries)
	}
	if settings.BackendURL != "https://flag.example" {
		t.Fatalf("expected backend URL from flags, got %s", settings.BackendURL)
	}
	if settings.BotID != "file-bot" {
		t.Fatalf("expected bot id from file, got %s", settings.BotID)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	data := "backend:\n  url: https://file.example\n  token_ttl: 5m\ncooldown: 1s\n"
	if err := os.WriteFile(configPath, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("KOI_BACKEND_URL", "https://env.example")
	t.Setenv("KOI_COOLDOWN", "3s")
	t.Setenv("KOI_USER_ID", "42")
	settings, err := Load(GlobalFlags{ConfigPath: configPath, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.BackendURL != "https://env.example" {
		t.Fatalf("expected env to override file, got %s", settings.BackendURL)
	}
	if settings.TokenTTL != 5*time.Minute {
		t.Fatalf("expected token TTL from file, got %v", settings.TokenTTL)
	}
	if settings.Cooldown != 3*time.Second {
		t.Fatalf("expected cooldown from env, got %v", settings.Cooldown)
	}
	if settings.UserID != "42" {
		t.Fatalf("expected user id from env, got %q", settings.UserID)
	}
}

func TestLoadDefaults(t *testing.T) {
	tmp := t.TempDir()
	settings, err := Load(GlobalFlags{ConfigPath: filepath.Join(tmp, "missing.yaml"), Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "json" {
		t.Fatalf("unexpected default output: %s", settings.OutputMode)
	}
	if settings.Timeout != 10*time.Second || settings.Retries != 2 {
		t.Fatalf("unexpected defaults: timeout=%v retries=%d", settings.Timeout, settings.Retries)
	}
	if settings.TokenTTL != 15*time.Minute || settings.DirectoryTTL != 6*time.Hour {
		t.Fatalf("unexpected TTL defaults: token=%v directory=%v", settings.TokenTTL, settings.DirectoryTTL)
	}
	if !settings.CacheEnabled || settings.SnapshotPath == "" {
		t.Fatalf("unexpected cache defaults: enabled=%v path=%q", settings.CacheEnabled, settings.SnapshotPath)
	}
	if settings.BackendURL != "" {
		t.Fatalf("backend URL should default to unset, got %q", settings.BackendURL)
	}
}

func TestLoadMutuallyExclusiveOutputFlags(t *testing.T) {
	_, err := Load(GlobalFlags{JSON: true, Plain: true})
	if err == nil {
		t.Fatal("expected error with --json and --plain")
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("timeout: nonsense\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(GlobalFlags{ConfigPath: configPath}); err == nil {
		t.Fatal("expected error for invalid config timeout")
	}

	if _, err := Load(GlobalFlags{ConfigPath: filepath.Join(tmp, "none.yaml"), Cooldown: "bogus"}); err == nil {
		t.Fatal("expected error for invalid --cooldown")
	}
}
