package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const summarizePrompt = `You are an expert summarizer for a church video channel. Given the title and
description of a YouTube broadcast, reply with a JSON object with two string fields:
"title", a short display title, and "summary", two or three sentences a viewer can read
before watching. Reply with the JSON object only.`

// ErrEmptyCompletion indicates the model returned nothing usable.
var ErrEmptyCompletion = errors.New("model returned an empty summary")

// Result is the generated title and summary.
type Result struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// OpenAISummarizer asks a chat completion model for a title and summary.
type OpenAISummarizer struct {
	client *openai.Client
	model  string
}

// NewOpenAISummarizer builds a summarizer. An empty baseURL uses the public API.
func NewOpenAISummarizer(apiKey, model, baseURL string) *OpenAISummarizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4
	}
	return &OpenAISummarizer{client: openai.NewClientWithConfig(cfg), model: model}
}

// Summarize implements Summarizer.
func (s *OpenAISummarizer) Summarize(ctx context.Context, t Transcript) (Result, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarizePrompt},
			{Role: openai.ChatMessageRoleUser, Content: t.Text()},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, ErrEmptyCompletion
	}

	content := strings.TrimSpace(resp.Choices[len(resp.Choices)-1].Message.Content)
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```json"), "```")

	var result Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &result); err != nil {
		result = Result{Summary: content}
	}
	result.Title = strings.TrimSpace(result.Title)
	result.Summary = strings.TrimSpace(result.Summary)
	if result.Summary == "" {
		return Result{}, ErrEmptyCompletion
	}
	if result.Title == "" {
		result.Title = t.Title
	}
	return result, nil
}
