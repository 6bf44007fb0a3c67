package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/veracity/internal/model"
)

func TestOllamaProvider_Judge_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Model != "llama3.1:8b" {
			t.Errorf("Expected model llama3.1:8b, got %s", req.Model)
		}
		if req.Stream {
			t.Error("Expected non-streaming request")
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:    "llama3.1:8b",
			Response: "INSUFFICIENT_LOGIC\nThe premises do not establish causation.",
			Done:     true,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1:8b", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	judgment, err := provider.Judge(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Judge failed: %v", err)
	}
	if judgment.Decision != model.AuditInsufficientLogic {
		t.Errorf("Expected INSUFFICIENT_LOGIC, got %s", judgment.Decision)
	}
	if !strings.Contains(judgment.Rationale, "causation") {
		t.Errorf("Unexpected rationale: %s", judgment.Rationale)
	}
}

func TestOllamaProvider_Judge_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model 'missing' not found"}`))
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Model: "missing", Timeout: 5})
	_, err := provider.Judge(context.Background(), testRequest)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestOllamaProvider_Judge_NoModel(t *testing.T) {
	provider, _ := NewOllamaProvider(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := provider.Judge(context.Background(), testRequest); err == nil {
		t.Fatal("Expected error when no model is configured")
	}
}

func TestOllamaProvider_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("Expected path /api/tags, got %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models": []}`))
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL})
	if err := provider.Ping(context.Background()); err != nil {
		t.Errorf("Expected ping to succeed, got %v", err)
	}
}
