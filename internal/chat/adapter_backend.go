package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// BackendAdapter sends chat turns to the hosted completion service.
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

type backendRequest struct {
	Message         string    `json:"message"`
	Messages        []Message `json:"messages,omitempty"`
	Model           string    `json:"model"`
	Context         string    `json:"context,omitempty"`
	EnableFunctions bool      `json:"enable_functions"`
}

type backendResponse struct {
	Response         string         `json:"response"`
	HasFunctionCalls bool           `json:"has_function_calls"`
	FunctionCalls    []FunctionCall `json:"function_calls"`
	Detail           string         `json:"detail"`
}

func (a *BackendAdapter) Complete(ctx context.Context, message string, history []Message) (Result, error) {
	if message == "" {
		return Result{}, nil
	}

	payload, err := json.Marshal(backendRequest{
		Message:         message,
		Messages:        history,
		Model:           a.cfg.Model,
		Context:         a.cfg.Context,
		EnableFunctions: a.cfg.EnableFunctions,
	})
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	var parsed backendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Printf("Chat: malformed response (status %d): %s", resp.StatusCode, raw)
		return Result{}, fmt.Errorf("chat failed: unexpected response from server")
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Detail != "" {
			return Result{}, fmt.Errorf("chat failed: %s", parsed.Detail)
		}
		return Result{}, fmt.Errorf("chat failed: status %d", resp.StatusCode)
	}

	log.Printf("Chat: completed in %v, %d function calls", time.Since(start), len(parsed.FunctionCalls))
	return Result{
		Response:         parsed.Response,
		HasFunctionCalls: parsed.HasFunctionCalls,
		FunctionCalls:    parsed.FunctionCalls,
	}, nil
}
