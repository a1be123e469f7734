// Package llm is a small client for OpenAI-compatible chat completion APIs.
// Outbound requests are rate limited per client.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-3.5-turbo"
)

var ErrEmptyCompletion = errors.New("llm returned no choices")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type Client struct {
	http    *resty.Client
	model   string
	limiter *rate.Limiter
}

type Option func(*Client)

// WithRateLimit caps outbound requests per second. Zero or negative
// disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(timeout)
	}
}

func New(baseURL, apiKey string, options ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(apiKey).
			SetHeader("Content-Type", "application/json").
			SetTimeout(60 * time.Second),
		model: DefaultModel,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Complete sends a system and user prompt and returns the first choice.
// With jsonMode the model is asked for a JSON object.
func (c *Client) Complete(ctx context.Context, system, prompt string, jsonMode bool) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	body := completionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
	}
	if jsonMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var result completionResponse
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&failure).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	if resp.IsError() {
		if failure.Error.Message != "" {
			return "", fmt.Errorf("chat completion: status %d: %s", resp.StatusCode(), failure.Error.Message)
		}
		return "", fmt.Errorf("chat completion: status %d", resp.StatusCode())
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return result.Choices[0].Message.Content, nil
}
