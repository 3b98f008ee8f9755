package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"notewriter/internal/services"
)

func textResponse(text string) map[string]any {
	return map[string]any{
		"content": []any{
			map[string]any{"type": "text", "text": text},
		},
		"stop_reason": "end_turn",
	}
}

func TestClientCompleteSendsMessagesRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Fatalf("unexpected api key header %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Fatalf("unexpected version header %q", got)
		}
		if got := r.Header.Get("content-type"); got != "application/json" {
			t.Fatalf("unexpected content type %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["model"] != "demo-model" {
			t.Fatalf("unexpected model %v", body["model"])
		}
		if body["temperature"] != 0.7 {
			t.Fatalf("unexpected temperature %v", body["temperature"])
		}
		if body["max_tokens"] != float64(1024) {
			t.Fatalf("expected default max_tokens 1024, got %v", body["max_tokens"])
		}
		messages, ok := body["messages"].([]any)
		if !ok || len(messages) != 1 {
			t.Fatalf("unexpected messages %v", body["messages"])
		}
		first := messages[0].(map[string]any)
		if first["role"] != "user" || first["content"] != "hello" {
			t.Fatalf("unexpected message %v", first)
		}
		_ = json.NewEncoder(w).Encode(textResponse("  hi there \n"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "demo-model"})
	text, err := client.Prompt(context.Background(), "hello", 0.7)
	if err != nil {
		t.Fatalf("Prompt returned error: %v", err)
	}
	if text != "hi there" {
		t.Fatalf("expected trimmed text, got %q", text)
	}
}

func TestClientCompleteClampsTemperatureAndHonoursOverrides(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["temperature"] != float64(1) {
			t.Fatalf("expected clamped temperature 1, got %v", body["temperature"])
		}
		if body["model"] != "override" {
			t.Fatalf("expected override model, got %v", body["model"])
		}
		if body["max_tokens"] != float64(42) {
			t.Fatalf("expected max_tokens 42, got %v", body["max_tokens"])
		}
		_ = json.NewEncoder(w).Encode(textResponse("ok"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "demo-model"})
	_, err := client.Complete(context.Background(), Request{
		Messages:    []Message{UserText("x")},
		Model:       "override",
		Temperature: 3.5,
		MaxTokens:   42,
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
}

func TestClientCompleteSkipsNonTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []any{
				map[string]any{"type": "thinking", "thinking": "hmm"},
				map[string]any{"type": "text", "text": "answer"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
	text, err := client.Prompt(context.Background(), "q", 0)
	if err != nil {
		t.Fatalf("Prompt returned error: %v", err)
	}
	if text != "answer" {
		t.Fatalf("expected first text block, got %q", text)
	}
}

func TestClientCompleteNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "invalid x-api-key"}})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "m"})
	_, err := client.Prompt(context.Background(), "q", 0.7)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid x-api-key") {
		t.Fatalf("expected body in error, got %v", err)
	}
}

func TestClientCompleteMalformedEnvelope(t *testing.T) {
	cases := map[string]string{
		"not json":   "<html>gateway</html>",
		"no content": `{"content":[]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(payload))
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
			_, err := client.Prompt(context.Background(), "q", 0.7)
			if !errors.Is(err, services.ErrMalformedResponse) {
				t.Fatalf("expected malformed response error, got %v", err)
			}
		})
	}
}

func TestClientCompleteRequiresAPIKey(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "m"})
	_, err := client.Prompt(context.Background(), "q", 0.7)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no outbound calls, got %d", calls.Load())
	}
}

func TestClientCompleteTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(
		Config{APIKey: "k", BaseURL: server.URL, Model: "m"},
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
	)
	_, err := client.Prompt(context.Background(), "q", 0.7)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error on timeout, got %v", err)
	}
}

func TestClientDescribeImageUsesVisionPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model     string  `json:"model"`
			MaxTokens int     `json:"max_tokens"`
			Temp      float64 `json:"temperature"`
			Messages  []struct {
				Role    string        `json:"role"`
				Content []ContentPart `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "vision-model" {
			t.Fatalf("expected vision model, got %q", body.Model)
		}
		if body.MaxTokens != 256 {
			t.Fatalf("expected 256 max tokens, got %d", body.MaxTokens)
		}
		if body.Temp != 0 {
			t.Fatalf("expected temperature 0, got %v", body.Temp)
		}
		if len(body.Messages) != 1 || len(body.Messages[0].Content) != 2 {
			t.Fatalf("unexpected messages %+v", body.Messages)
		}
		image := body.Messages[0].Content[0]
		if image.Type != "image_url" || image.ImageURL == nil || image.ImageURL.URL != "https://example.com/a.jpg" {
			t.Fatalf("unexpected image part %+v", image)
		}
		if text := body.Messages[0].Content[1]; text.Type != "text" || !strings.Contains(text.Text, "Describe the image") {
			t.Fatalf("unexpected text part %+v", text)
		}
		_ = json.NewEncoder(w).Encode(textResponse("A chart of case counts."))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "text-model", VisionModel: "vision-model"})
	got := client.DescribeImage(context.Background(), "https://example.com/a.jpg", 0)
	if got != "A chart of case counts." {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestClientDescribeImageSwallowsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"vision not enabled"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
	if got := client.DescribeImage(context.Background(), "https://example.com/a.jpg", 0); got != "" {
		t.Fatalf("expected empty description, got %q", got)
	}
	if got := client.DescribeImage(context.Background(), "   ", 0); got != "" {
		t.Fatalf("expected empty description for blank url, got %q", got)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(textResponse("```json\n{\"ok\":true}\n```"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(textResponse(`{"ok":false}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed response error, got %v", err)
	}
}
