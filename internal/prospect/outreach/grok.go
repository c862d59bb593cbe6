package outreach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	commonhttp "prospect-workers/internal/common/http"
	"prospect-workers/internal/prospect/circuit"
)

const ServiceXAI = "xai"

var ErrEmptyCompletion = errors.New("empty completion")

type Poster interface {
	Post(ctx context.Context, target string, body []byte, headers map[string]string) (*commonhttp.Response, error)
}

type GrokOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// GrokClient calls the xAI chat completions endpoint.
type GrokClient struct {
	fetcher Poster
	breaker *circuit.Registry
	opts    GrokOptions
}

func NewGrokClient(fetcher Poster, breaker *circuit.Registry, opts GrokOptions) *GrokClient {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &GrokClient{fetcher: fetcher, breaker: breaker, opts: opts}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *GrokClient) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	resp, err := circuit.Execute(ctx, c.breaker, ServiceXAI, func(ctx context.Context) (*commonhttp.Response, error) {
		resp, err := c.fetcher.Post(ctx, c.opts.BaseURL+"/chat/completions", body, map[string]string{
			"Content-Type":  "application/json",
			"Accept":        "application/json",
			"Authorization": "Bearer " + c.opts.APIKey,
		})
		if err != nil {
			return nil, err
		}
		if err := resp.Err(); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return "", fmt.Errorf("xai chat completion: %w", err)
	}

	var parsed chatResponse
	if err := resp.JSON(&parsed); err != nil {
		return "", fmt.Errorf("xai chat completion: decode: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return parsed.Choices[0].Message.Content, nil
}
