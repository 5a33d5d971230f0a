package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mmkontis/whisperme/internal/chat"
	"github.com/mmkontis/whisperme/internal/injection"
	"github.com/mmkontis/whisperme/internal/language"
	"github.com/mmkontis/whisperme/internal/recording"
	"github.com/mmkontis/whisperme/internal/transcriber"
)

type Config struct {
	Backend       BackendConfig       `toml:"backend"`
	Recording     RecordingConfig     `toml:"recording"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Chat          ChatConfig          `toml:"chat"`
	Injection     InjectionConfig     `toml:"injection"`
	Notifications NotificationsConfig `toml:"notifications"`
	Server        ServerConfig        `toml:"server"`
}

// BackendConfig points at the hosted transcription service and the web
// dashboard that issues connection tokens.
type BackendConfig struct {
	BaseURL   string `toml:"base_url"`
	WebAppURL string `toml:"web_app_url"`
}

type RecordingConfig struct {
	SampleRate int    `toml:"sample_rate"`
	Channels   int    `toml:"channels"`
	Format     string `toml:"format"`
	ReadSize   int    `toml:"read_size"`
	Device     string `toml:"device"`
	FrameQueue int    `toml:"frame_queue"`
}

type TranscriptionConfig struct {
	Provider string `toml:"provider"` // "backend" or "openai"
	APIKey   string `toml:"api_key"`
	Language string `toml:"language"`
	Model    string `toml:"model"`
	Prompt   string `toml:"prompt"`
}

type ChatConfig struct {
	Enabled         bool   `toml:"enabled"`
	Provider        string `toml:"provider"`
	APIKey          string `toml:"api_key"`
	Model           string `toml:"model"`
	Context         string `toml:"context"`
	EnableFunctions bool   `toml:"enable_functions"`
}

type InjectionConfig struct {
	Mode             string        `toml:"mode"`
	RestoreClipboard bool          `toml:"restore_clipboard"`
	TypeTimeout      time.Duration `toml:"type_timeout"`
	ClipboardTimeout time.Duration `toml:"clipboard_timeout"`
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type"` // "desktop", "log", "none"
}

// ServerConfig configures the token-issuing HTTP server (`whisperme
// server`), the piece the web dashboard talks to.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	DBPath      string `toml:"db_path"`
	IdentityURL string `toml:"identity_url"`
	AdminKey    string `toml:"admin_key"`
}

func (c *Config) ToRecordingOptions() recording.Options {
	return recording.Options{
		SampleRate: c.Recording.SampleRate,
		Channels:   c.Recording.Channels,
		Format:     c.Recording.Format,
		ReadSize:   c.Recording.ReadSize,
		Device:     c.Recording.Device,
		FrameQueue: c.Recording.FrameQueue,
	}
}

func (c *Config) ToTranscriberConfig(deviceID string) transcriber.Config {
	cfg := transcriber.Config{
		Provider: c.Transcription.Provider,
		BaseURL:  c.Backend.BaseURL,
		DeviceID: deviceID,
		APIKey:   c.Transcription.APIKey,
		Language: c.Transcription.Language,
		Model:    c.Transcription.Model,
		Prompt:   c.Transcription.Prompt,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cfg
}

func (c *Config) ToChatConfig() chat.Config {
	cfg := chat.Config{
		Provider:        c.Chat.Provider,
		BaseURL:         c.Backend.BaseURL,
		APIKey:          c.Chat.APIKey,
		Model:           c.Chat.Model,
		Context:         c.Chat.Context,
		EnableFunctions: c.Chat.EnableFunctions,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cfg
}

func (c *Config) ToInjectionConfig() injection.Config {
	return injection.Config{
		Mode:             c.Injection.Mode,
		RestoreClipboard: c.Injection.RestoreClipboard,
		TypeTimeout:      c.Injection.TypeTimeout,
		ClipboardTimeout: c.Injection.ClipboardTimeout,
	}
}

func (c *Config) Validate() error {
	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid recording.sample_rate: %d", c.Recording.SampleRate)
	}
	if c.Recording.Channels <= 0 {
		return fmt.Errorf("invalid recording.channels: %d", c.Recording.Channels)
	}
	if c.Recording.ReadSize <= 0 {
		return fmt.Errorf("invalid recording.read_size: %d", c.Recording.ReadSize)
	}
	if c.Recording.FrameQueue <= 0 {
		return fmt.Errorf("invalid recording.frame_queue: %d", c.Recording.FrameQueue)
	}
	if c.Recording.Format == "" {
		return fmt.Errorf("invalid recording.format: empty")
	}

	switch c.Transcription.Provider {
	case "backend":
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("backend.base_url required for transcription.provider = \"backend\"")
		}
	case "openai":
		if c.Transcription.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("OpenAI API key required: set transcription.api_key or OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("invalid transcription.provider: %s (must be backend or openai)", c.Transcription.Provider)
	}
	if c.Transcription.Model == "" {
		return fmt.Errorf("invalid transcription.model: empty")
	}
	if !language.IsValidCode(c.Transcription.Language) {
		return fmt.Errorf("invalid transcription.language: %s (use \"auto\" or an ISO 639-1 code)", c.Transcription.Language)
	}

	if c.Chat.Enabled {
		switch c.Chat.Provider {
		case "backend":
			if c.Backend.BaseURL == "" {
				return fmt.Errorf("backend.base_url required for chat.provider = \"backend\"")
			}
		case "openai":
			if c.Chat.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
				return fmt.Errorf("OpenAI API key required: set chat.api_key or OPENAI_API_KEY")
			}
		default:
			return fmt.Errorf("invalid chat.provider: %s (must be backend or openai)", c.Chat.Provider)
		}
		if c.Chat.Model == "" {
			return fmt.Errorf("invalid chat.model: empty")
		}
	}

	validModes := map[string]bool{"clipboard": true, "type": true, "fallback": true}
	if !validModes[c.Injection.Mode] {
		return fmt.Errorf("invalid injection.mode: %s (must be clipboard, type, or fallback)", c.Injection.Mode)
	}
	if c.Injection.TypeTimeout <= 0 {
		return fmt.Errorf("invalid injection.type_timeout: %v", c.Injection.TypeTimeout)
	}
	if c.Injection.ClipboardTimeout <= 0 {
		return fmt.Errorf("invalid injection.clipboard_timeout: %v", c.Injection.ClipboardTimeout)
	}

	validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	return nil
}
