package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func anthropicReply(text string) map[string]any {
	return map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
		"model":   "claude-haiku-4-5-20251001",
		"usage":   map[string]int{"input_tokens": 12, "output_tokens": 8},
	}
}

func TestNewAnthropicProvider_EmptyKey(t *testing.T) {
	if _, err := NewAnthropicProvider(""); err == nil {
		t.Fatal("NewAnthropicProvider() should return error for empty key")
	}
}

func TestAnthropicProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("unexpected x-api-key: %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("unexpected anthropic-version: %s", r.Header.Get("anthropic-version"))
		}

		var body anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "claude-sonnet-4-6" {
			t.Errorf("model = %q, want configured model", body.Model)
		}
		if body.MaxTokens != anthropicMaxTokens {
			t.Errorf("max_tokens = %d, want default %d", body.MaxTokens, anthropicMaxTokens)
		}

		_ = json.NewEncoder(w).Encode(anthropicReply("Claude response"))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider("test-key",
		WithAnthropicBaseURL(server.URL),
		WithAnthropicModel("claude-sonnet-4-6"),
	)
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Claude response" {
		t.Errorf("content = %q, want %q", resp.Content, "Claude response")
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 8 {
		t.Errorf("tokens = %d/%d, want 12/8", resp.InputTokens, resp.OutputTokens)
	}
}

func TestAnthropicProvider_BuildRequest(t *testing.T) {
	provider, _ := NewAnthropicProvider("test-key")

	got := provider.buildRequest(CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "You are an interview coach."},
			{Role: "user", Content: "Score this answer."},
		},
		MaxTokens:   1024,
		Temperature: 0.7,
		JSON:        true,
	})

	if got.System != "You are an interview coach." {
		t.Errorf("system = %q", got.System)
	}
	if got.Model != defaultAnthropicModel {
		t.Errorf("model = %q, want %q", got.Model, defaultAnthropicModel)
	}
	if got.Temperature == nil || *got.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", got.Temperature)
	}
	// System text moves out of band; JSON mode prefills the assistant turn.
	if len(got.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(got.Messages))
	}
	if last := got.Messages[1]; last.Role != "assistant" || last.Content != "{" {
		t.Errorf("last message = %+v, want assistant prefill", last)
	}
}

func TestAnthropicProvider_Complete_JSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The model continues after the prefilled brace.
		_ = json.NewEncoder(w).Encode(anthropicReply(`"averageScore": 7}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider("test-key", WithAnthropicBaseURL(server.URL))

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "score"}},
		JSON:     true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != `{"averageScore": 7}` {
		t.Errorf("content = %q, want the prefill restored", resp.Content)
	}
}

func TestAnthropicProvider_Complete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"api error", http.StatusUnauthorized, `{"error": {"message": "invalid api key"}}`},
		{"no content", http.StatusOK, `{"content": [], "model": "m"}`},
		{"garbage", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			provider, _ := NewAnthropicProvider("bad-key", WithAnthropicBaseURL(server.URL))
			_, err := provider.Complete(context.Background(), CompletionRequest{
				Messages: []Message{{Role: "user", Content: "hello"}},
			})
			if err == nil {
				t.Fatal("Complete() should return error")
			}
		})
	}
}

func TestAnthropicProvider_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy", http.StatusUnauthorized, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/models" {
					t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
				}
				if r.Header.Get("x-api-key") != "test-key" {
					t.Errorf("missing x-api-key")
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			provider, _ := NewAnthropicProvider("test-key", WithAnthropicBaseURL(server.URL))
			err := provider.HealthCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
