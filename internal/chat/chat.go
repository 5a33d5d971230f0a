package chat

import (
	"context"
	"fmt"
	"sync"
)

// MaxHistory bounds the conversation window sent to the model. Oldest
// turns fall off first.
const MaxHistory = 5

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is a completed chat turn.
type Result struct {
	Response         string
	HasFunctionCalls bool
	FunctionCalls    []FunctionCall
}

// Adapter completes a chat turn given the new message and the prior
// conversation window.
type Adapter interface {
	Complete(ctx context.Context, message string, history []Message) (Result, error)
}

type Config struct {
	Provider        string
	BaseURL         string
	APIKey          string
	Model           string
	Context         string
	EnableFunctions bool
}

func DefaultConfig() Config {
	return Config{
		Provider: "backend",
		Model:    "gpt-4o",
	}
}

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

// History is the bounded conversation window. Safe for concurrent use,
// though the orchestrator mutates it from a single goroutine.
type History struct {
	mu       sync.Mutex
	messages []Message
}

func NewHistory() *History {
	return &History{}
}

// Append adds a turn and evicts the oldest when past MaxHistory.
func (h *History) Append(role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, Message{Role: role, Content: content})
	if len(h.messages) > MaxHistory {
		h.messages = h.messages[len(h.messages)-MaxHistory:]
	}
}

// Snapshot returns a copy of the current window.
func (h *History) Snapshot() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}
