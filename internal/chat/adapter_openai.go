package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are a helpful assistant. Provide concise and accurate responses."

// OpenAIAdapter talks to the OpenAI chat API directly for users who
// bring their own key.
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

func (a *OpenAIAdapter) Complete(ctx context.Context, message string, history []Message) (Result, error) {
	if message == "" {
		return Result{}, nil
	}

	system := a.cfg.Context
	if system == "" {
		system = systemPrompt
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem, Content: system,
	})
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: message,
	})

	model := a.cfg.Model
	if model == "" {
		model = openai.GPT4o
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	})
	if err != nil {
		log.Printf("Chat: openai call failed after %v: %v", time.Since(start), err)
		return Result{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("openai chat completion: no response choices")
	}

	log.Printf("Chat: openai completed in %v", time.Since(start))
	return Result{Response: resp.Choices[0].Message.Content}, nil
}
