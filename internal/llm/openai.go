package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client using the go-openai SDK's chat
// completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI client against the public API.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{client: openai.NewClient(apiKey), model: model}
}

// NewOpenAIClientWithBaseURL is used in tests and for OpenAI-compatible
// gateways that aren't the public API.
func NewOpenAIClientWithBaseURL(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}
}

// Complete generates a text completion using OpenAI's chat completions API.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteJSON generates a completion and parses the result as JSON.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, prompt string, opts CompletionOptions, result interface{}) error {
	opts.JSONMode = true
	response, err := c.Complete(ctx, prompt, opts)
	if err != nil {
		return err
	}
	return parseJSONResponse(response, result)
}

// Model returns the model identifier.
func (c *OpenAIClient) Model() string { return c.model }

// Backend returns "openai".
func (c *OpenAIClient) Backend() string { return "openai" }
