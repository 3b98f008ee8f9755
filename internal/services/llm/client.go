package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"notewriter/internal/logging"
	"notewriter/internal/services"
)

const (
	defaultHTTPTimeout     = 60 * time.Second
	defaultBaseURL         = "https://api.anthropic.com/v1/messages"
	defaultAPIVersion      = "2023-06-01"
	defaultMaxTokens       = 1024
	describeImageMaxTokens = 256
	describeImagePrompt    = "Describe the image accurately and objectively."
	maxErrorBodyBytes      = 4096
)

// Config captures the runtime settings required to talk to the completion endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	APIVersion     string
	Model          string
	VisionModel    string
	TimeoutSeconds int
}

// DefaultHTTPTimeout returns the default timeout used for completion requests.
func DefaultHTTPTimeout() time.Duration {
	return defaultHTTPTimeout
}

// Client wraps the Anthropic Messages API. It holds no state between calls
// and never retries; retry policy belongs to the caller.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger used for swallowed best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a completion client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			APIVersion:     strings.TrimSpace(cfg.APIVersion),
			Model:          strings.TrimSpace(cfg.Model),
			VisionModel:    strings.TrimSpace(cfg.VisionModel),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.APIVersion == "" {
		client.cfg.APIVersion = defaultAPIVersion
	}
	if client.cfg.VisionModel == "" {
		client.cfg.VisionModel = client.cfg.Model
	}
	client.logger = logging.NewComponentLogger(client.logger, "llm")
	return client
}

// Model returns the default model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Request is a single completion call.
type Request struct {
	Messages []Message
	// Model overrides the client default when non-empty.
	Model string
	// Temperature is clamped to [0, 1].
	Temperature float64
	// MaxTokens defaults to 1024 when not positive.
	MaxTokens int
}

// StatusError reports a non-2xx response from the completion endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the conversation and returns the first text block of the
// reply, whitespace-trimmed. Transport failures and non-2xx statuses wrap
// services.ErrTransport; undecodable envelopes wrap services.ErrMalformedResponse.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "llm", "complete", "api key required", nil)
	}
	if len(req.Messages) == 0 {
		return "", services.Wrap(services.ErrValidation, "llm", "complete", "at least one message required", nil)
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	if model == "" {
		return "", services.Wrap(services.ErrConfiguration, "llm", "complete", "model required", nil)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	payload := messagesRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: clampTemperature(req.Temperature),
		MaxTokens:   maxTokens,
	}
	return c.send(ctx, payload)
}

// Prompt issues a single-shot completion with one user turn.
func (c *Client) Prompt(ctx context.Context, prompt string, temperature float64) (string, error) {
	return c.Complete(ctx, Request{
		Messages:    []Message{UserText(prompt)},
		Temperature: temperature,
	})
}

// DescribeImage returns a plain-text description of the image at imageURL, or
// "" when the request fails for any reason. Image description is best-effort
// enrichment, so failures are logged and never returned.
func (c *Client) DescribeImage(ctx context.Context, imageURL string, temperature float64) string {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return ""
	}
	text, err := c.Complete(ctx, Request{
		Messages: []Message{UserParts(
			ImagePart(imageURL),
			TextPart(describeImagePrompt),
		)},
		Model:       c.cfg.VisionModel,
		Temperature: temperature,
		MaxTokens:   describeImageMaxTokens,
	})
	if err != nil {
		attrs := []logging.Attr{
			logging.String("image_url", imageURL),
			logging.Error(err),
			logging.String(logging.FieldImpact, "post is classified without an image summary"),
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			attrs = append(attrs,
				logging.Int("status", statusErr.StatusCode),
				logging.String(logging.FieldErrorHint, "vision may be unavailable for this key or model"),
			)
		}
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "vision call skipped", "describe_image_failed", attrs...)
		return ""
	}
	return text
}

// HealthCheck issues a tiny request to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	text, err := c.Complete(ctx, Request{
		Messages:    []Message{UserText("Respond with {\"ok\":true}")},
		Temperature: 0,
		MaxTokens:   16,
	})
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(text, &parsed); err != nil {
		return services.Wrap(services.ErrMalformedResponse, "llm", "health", "parse payload", err)
	}
	if !parsed.OK {
		return services.Wrap(services.ErrMalformedResponse, "llm", "health", "unexpected response", nil)
	}
	return nil
}

func (c *Client) send(ctx context.Context, payload messagesRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "llm", "request", "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "llm", "request", "new request", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.APIVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "llm", "request", fmt.Sprintf("http error (timeout=%s)", c.timeoutDuration()), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "llm", "request", "read body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", services.Wrap(services.ErrTransport, "llm", "request", "", &StatusError{
			StatusCode: resp.StatusCode,
			Body:       truncateBody(body),
		})
	}

	var decoded messagesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrMalformedResponse, "llm", "decode response", Snippet(string(body), snippetLimit), err)
	}
	if decoded.Error != nil {
		return "", services.Wrap(services.ErrTransport, "llm", "api error", strings.TrimSpace(decoded.Error.Message), nil)
	}
	for _, block := range decoded.Content {
		if block.Type == "" || block.Type == "text" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", services.Wrap(services.ErrMalformedResponse, "llm", "decode response",
		fmt.Sprintf("no text content (stop_reason=%q)", decoded.StopReason), nil)
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func clampTemperature(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 1:
		return 1
	default:
		return value
	}
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	return strings.TrimSpace(string(body))
}
