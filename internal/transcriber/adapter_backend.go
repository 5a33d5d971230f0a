package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"
)

// BackendAdapter sends audio to the hosted transcription service.
type BackendAdapter struct {
	cfg    Config
	client *http.Client
}

func NewBackendAdapter(cfg Config) *BackendAdapter {
	return &BackendAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type backendResponse struct {
	Text           string `json:"text"`
	UsageRemaining *int   `json:"usage_remaining"`
	IsPremium      *bool  `json:"is_premium"`
	Detail         string `json:"detail"`
}

func (a *BackendAdapter) Transcribe(ctx context.Context, wav []byte) (Result, error) {
	if len(wav) == 0 {
		return Result{}, nil
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	if err := mw.WriteField("device_id", a.cfg.DeviceID); err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	if err := mw.WriteField("model", a.cfg.Model); err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	// The backend treats a missing language as auto-detect; sending
	// "auto" as a language code confuses some whisper deployments.
	if a.cfg.Language != "" && a.cfg.Language != "auto" {
		if err := mw.WriteField("language", a.cfg.Language); err != nil {
			return Result{}, fmt.Errorf("build request: %w", err)
		}
	}
	if a.cfg.Prompt != "" {
		if err := mw.WriteField("prompt", a.cfg.Prompt); err != nil {
			return Result{}, fmt.Errorf("build request: %w", err)
		}
	}

	part, err := mw.CreateFormFile("audio_file", "audio.wav")
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/transcribe", body)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	var parsed backendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Printf("Transcriber: malformed response (status %d): %s", resp.StatusCode, raw)
		return Result{}, fmt.Errorf("transcription failed: unexpected response from server")
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Detail != "" {
			return Result{}, fmt.Errorf("transcription failed: %s", parsed.Detail)
		}
		return Result{}, fmt.Errorf("transcription failed: status %d", resp.StatusCode)
	}

	log.Printf("Transcriber: %d bytes in %v: %q", len(wav), time.Since(start), parsed.Text)
	return Result{
		Text:           parsed.Text,
		UsageRemaining: parsed.UsageRemaining,
		IsPremium:      parsed.IsPremium,
	}, nil
}
