// Package careplan generates draft care-plan summaries for newly registered
// patients using an LLM, driven by events consumed from the message bus.
package careplan

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// LLMClient abstracts the completion backend so the generator can be
// tested without network access.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAIClient implements LLMClient on top of the OpenAI chat API.
// A custom BaseURL allows pointing at compatible local gateways.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for the given API key and model.
func NewOpenAIClient(apiKey string, model string, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}

const systemPrompt = `You are a clinical intake assistant. Given a new patient's ` +
	`medication and intake notes, draft a short care-plan summary for the care ` +
	`team to review. Be factual, flag anything that needs clinician follow-up, ` +
	`and do not invent clinical details that were not provided.`
