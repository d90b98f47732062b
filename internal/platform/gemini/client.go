// Package gemini wraps the Gemini generateContent call of the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 45 * time.Second
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("gemini: response has no candidate text")

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	baseURL    string
	model      string
	timeout    time.Duration
}

// WithHTTPClient overrides the SDK's default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = strings.TrimRight(u, "/") + "/"
		}
	}
}

func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithTimeout bounds each call, including reading the response.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// Client sends single-turn prompts to one model. It is safe for concurrent use.
type Client struct {
	models  *genai.Models
	model   string
	timeout time.Duration
}

// New builds a client for the Gemini API backend authenticated by apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	o := options{baseURL: DefaultBaseURL + "/", model: DefaultModel, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    o.baseURL,
			APIVersion: "v1beta",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{models: gc.Models, model: o.model, timeout: o.timeout}, nil
}

func (c *Client) Model() string {
	return c.model
}

// GenerateText sends prompt as a single user turn and returns the text of
// the first candidate.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}
	return text, nil
}
