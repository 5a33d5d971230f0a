package transcriber

import (
	"context"
	"fmt"
)

// Result is a finished transcription. Usage fields are only present
// when the hosted backend reports them.
type Result struct {
	Text           string
	UsageRemaining *int
	IsPremium      *bool
}

// Adapter turns a WAV artifact into text.
type Adapter interface {
	Transcribe(ctx context.Context, wav []byte) (Result, error)
}

type Config struct {
	Provider string
	BaseURL  string
	DeviceID string
	APIKey   string
	Language string
	Model    string
	Prompt   string
}

func DefaultConfig() Config {
	return Config{
		Provider: "backend",
		Language: "auto",
		Model:    "gpt-4o-transcribe",
	}
}

// NewAdapter selects the transcription backend by provider name.
func NewAdapter(cfg Config) (Adapter, error) {
	switch cfg.Provider {
	case "backend":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("backend base URL required")
		}
		return NewBackendAdapter(cfg), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		return NewOpenAIAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
