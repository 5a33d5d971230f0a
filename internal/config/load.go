package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config directory: %w", err)
	}
	dir := filepath.Join(configDir, "whisperme")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:   "https://api.whisperme.app",
			WebAppURL: "https://whisperme.app",
		},
		Recording: RecordingConfig{
			SampleRate: 16000,
			Channels:   1,
			Format:     "s16le",
			ReadSize:   4096,
			FrameQueue: 20,
		},
		Transcription: TranscriptionConfig{
			Provider: "backend",
			Language: "auto",
			Model:    "gpt-4o-transcribe",
		},
		Chat: ChatConfig{
			Enabled:         true,
			Provider:        "backend",
			Model:           "gpt-4o",
			EnableFunctions: false,
		},
		Injection: InjectionConfig{
			Mode:             "fallback",
			RestoreClipboard: true,
			TypeTimeout:      5 * time.Second,
			ClipboardTimeout: 3 * time.Second,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "desktop",
		},
		Server: ServerConfig{
			Addr:   ":8090",
			DBPath: "whisperme.db",
		},
	}
}

func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("Config: no config file at %s, writing defaults", path)
		cfg := Default()
		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		return cfg, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString("# WhisperMe configuration\n# Changes are picked up without a daemon restart.\n\n"); err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
