package generation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var ErrEmptyResponse = errors.New("generation: provider returned no choices")

// Config configures the chat completions client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// SearchModel answers queries that need fresh information from the web.
	SearchModel string
	// SearchContextSize is one of low, medium, high.
	SearchContextSize string
	Timeout           time.Duration
}

// Client generates answers through an OpenAI-compatible chat completions API.
type Client struct {
	api               openai.Client
	model             string
	searchModel       string
	searchContextSize string
}

func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.SearchModel == "" {
		cfg.SearchModel = "gpt-4o-mini-search-preview"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithRequestTimeout(cfg.Timeout),
		// failures surface to the chat turn as they are
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}

	return &Client{
		api:               openai.NewClient(opts...),
		model:             cfg.Model,
		searchModel:       cfg.SearchModel,
		searchContextSize: cfg.SearchContextSize,
	}, nil
}

// Generate answers prompt with the plain chat model.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
}

// GenerateWithSearch answers prompt with the search model, which consults
// the web before replying.
func (c *Client) GenerateWithSearch(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.searchModel),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	// an all-zero options struct would be omitted from the request
	switch c.searchContextSize {
	case "low":
		params.WebSearchOptions.SearchContextSize = "low"
	case "high":
		params.WebSearchOptions.SearchContextSize = "high"
	default:
		params.WebSearchOptions.SearchContextSize = "medium"
	}
	return c.complete(ctx, params)
}

func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", params.Model, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
