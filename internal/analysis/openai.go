package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/Ariequ/svn-auto-merge/internal/config"
)

const systemPrompt = "You are a release engineer helping to triage Subversion merge conflicts. " +
	"Explain why the merge conflicted and what the resolver should look at. Be concrete and brief."

// OpenAIClient talks to any OpenAI-compatible chat-completions server. An
// Ollama instance qualifies via its /v1 endpoint, which is the usual setup.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient creates a client for the configured server.
func NewOpenAIClient(cfg config.OllamaConfig) *OpenAIClient {
	clientConfig := openai.DefaultConfig("svn-auto-merge")
	base := strings.TrimRight(cfg.BaseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	clientConfig.BaseURL = base

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: cfg.RequestTimeout(),
	}
}

func (c *OpenAIClient) Analyze(ctx context.Context, req Request) Result {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildConflictPrompt(req)},
		},
	})
	if err != nil {
		return Unavailable(req, err.Error())
	}
	if len(resp.Choices) == 0 {
		return Unavailable(req, "service returned no choices")
	}

	explanation := strings.TrimSpace(resp.Choices[0].Message.Content)
	if explanation == "" {
		return Unavailable(req, "service returned an empty explanation")
	}

	return Result{
		Revision:        req.Revision.Number,
		Explanation:     explanation,
		ConflictedPaths: req.ConflictedPaths,
	}
}
