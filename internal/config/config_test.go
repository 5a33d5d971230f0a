package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setTempConfigHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func TestLoadCreatesDefaults(t *testing.T) {
	home := setTempConfigHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recording.SampleRate != 16000 || cfg.Transcription.Provider != "backend" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	if _, err := os.Stat(filepath.Join(home, "whisperme", "config.toml")); err != nil {
		t.Errorf("default config file not written: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	setTempConfigHome(t)

	cfg := Default()
	cfg.Backend.BaseURL = "http://localhost:9999"
	cfg.Transcription.Language = "it"
	cfg.Transcription.Prompt = "medical terms"
	cfg.Chat.Enabled = false
	cfg.Injection.TypeTimeout = 7 * time.Second

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Backend.BaseURL != "http://localhost:9999" {
		t.Errorf("base_url = %q", got.Backend.BaseURL)
	}
	if got.Transcription.Language != "it" || got.Transcription.Prompt != "medical terms" {
		t.Errorf("transcription = %+v", got.Transcription)
	}
	if got.Chat.Enabled {
		t.Errorf("chat.enabled survived as true")
	}
	if got.Injection.TypeTimeout != 7*time.Second {
		t.Errorf("type_timeout = %v", got.Injection.TypeTimeout)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero sample rate", func(c *Config) { c.Recording.SampleRate = 0 }, true},
		{"empty format", func(c *Config) { c.Recording.Format = "" }, true},
		{"backend without url", func(c *Config) { c.Backend.BaseURL = "" }, true},
		{"unknown transcription provider", func(c *Config) { c.Transcription.Provider = "carrier-pigeon" }, true},
		{"empty model", func(c *Config) { c.Transcription.Model = "" }, true},
		{"bad language code", func(c *Config) { c.Transcription.Language = "klingon" }, true},
		{"empty language is auto", func(c *Config) { c.Transcription.Language = "" }, false},
		{"chat disabled skips chat checks", func(c *Config) {
			c.Chat.Enabled = false
			c.Chat.Provider = "nonsense"
		}, false},
		{"chat enabled bad provider", func(c *Config) { c.Chat.Provider = "nonsense" }, true},
		{"bad injection mode", func(c *Config) { c.Injection.Mode = "osmosis" }, true},
		{"zero clipboard timeout", func(c *Config) { c.Injection.ClipboardTimeout = 0 }, true},
		{"bad notification type", func(c *Config) { c.Notifications.Type = "carrier-pigeon" }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestDeviceIDStable(t *testing.T) {
	setTempConfigHome(t)

	first, err := DeviceID()
	if err != nil {
		t.Fatalf("DeviceID: %v", err)
	}
	second, err := DeviceID()
	if err != nil {
		t.Fatalf("DeviceID second call: %v", err)
	}
	if first != second {
		t.Errorf("device id changed between calls: %q vs %q", first, second)
	}
	if len(first) != 36 {
		t.Errorf("device id %q is not a uuid", first)
	}
}

func TestDeviceIDRegeneratedWhenCorrupt(t *testing.T) {
	home := setTempConfigHome(t)

	dir := filepath.Join(home, "whisperme")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, deviceIDFile), []byte("not-a-uuid"), 0o600); err != nil {
		t.Fatal(err)
	}

	id, err := DeviceID()
	if err != nil {
		t.Fatalf("DeviceID: %v", err)
	}
	if id == "not-a-uuid" {
		t.Errorf("corrupt device id was kept")
	}
}

func TestManagerReturnsCopy(t *testing.T) {
	setTempConfigHome(t)

	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Stop()

	cfg := m.Get()
	cfg.Backend.BaseURL = "http://mutated"

	if m.Get().Backend.BaseURL == "http://mutated" {
		t.Errorf("Get returned shared state")
	}
}
