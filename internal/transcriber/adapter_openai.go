package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIAdapter talks to the OpenAI transcription API directly, for
// users who bring their own key instead of the hosted backend.
type OpenAIAdapter struct {
	client *openai.Client
	cfg    Config
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	return &OpenAIAdapter{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
	}
}

func (a *OpenAIAdapter) Transcribe(ctx context.Context, wav []byte) (Result, error) {
	if len(wav) == 0 {
		return Result{}, nil
	}

	language := a.cfg.Language
	if language == "auto" {
		language = ""
	}

	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(wav),
		FilePath: "audio.wav",
		Language: language,
		Prompt:   a.cfg.Prompt,
	}

	start := time.Now()
	resp, err := a.client.CreateTranscription(ctx, req)
	if err != nil {
		log.Printf("Transcriber: openai call failed after %v: %v", time.Since(start), err)
		return Result{}, fmt.Errorf("openai transcription: %w", err)
	}

	log.Printf("Transcriber: openai transcribed %d bytes in %v", len(wav), time.Since(start))
	return Result{Text: resp.Text}, nil
}
