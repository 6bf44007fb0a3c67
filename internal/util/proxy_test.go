package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.internal:3128", "", "skip.example.org")

	tests := []struct {
		target string
		want   string
	}{
		{"http://example.com/page", "http://proxy.internal:3128"},
		{"https://example.com/page", "http://proxy.internal:3128"},
		{"https://skip.example.org/doc", ""},
		{"https://a.skip.example.org/doc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, tt.target, nil)
			if err != nil {
				t.Fatalf("Failed to build request: %v", err)
			}
			got, err := proxy(req)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			gotStr := ""
			if got != nil {
				gotStr = got.String()
			}
			if gotStr != tt.want {
				t.Errorf("proxy(%s) = %q, want %q", tt.target, gotStr, tt.want)
			}
		})
	}
}

func TestNewProxyFunc_SeparateHTTPSProxy(t *testing.T) {
	proxy := NewProxyFunc("http://plain.internal:3128", "http://secure.internal:3129", "")

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	got, err := proxy(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got == nil || got.Host != "secure.internal:3129" {
		t.Errorf("Expected https proxy, got %v", got)
	}
}
