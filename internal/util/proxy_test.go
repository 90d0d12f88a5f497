package util

import (
	"net/http"
	"testing"
	"time"
)

func TestNewProxyFunc_Explicit(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "http://secure.local:3129", "internal.example.com,10.0.0.0/8")

	tests := []struct {
		target string
		want   string
	}{
		{"http://api.example.com/v1", "http://proxy.local:3128"},
		{"https://api.example.com/v1", "http://secure.local:3129"},
		{"https://internal.example.com/v1", ""},
		{"https://svc.internal.example.com/v1", ""},
		{"http://10.1.2.3:11434/api/tags", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, tt.target, nil)
			if err != nil {
				t.Fatalf("NewRequest failed: %v", err)
			}
			got, err := proxy(req)
			if err != nil {
				t.Fatalf("proxy returned error: %v", err)
			}
			if tt.want == "" {
				if got != nil {
					t.Errorf("Expected no proxy for %s, got %s", tt.target, got)
				}
				return
			}
			if got == nil || got.String() != tt.want {
				t.Errorf("Expected proxy %s, got %v", tt.want, got)
			}
		})
	}
}

func TestNewProxyFunc_HTTPOnlyCoversHTTPS(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "", "")

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com", nil)
	got, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy returned error: %v", err)
	}
	if got == nil || got.Host != "proxy.local:3128" {
		t.Errorf("Expected proxy.local:3128, got %v", got)
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(5*time.Second, "", "", "")
	if client.Timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Expected *http.Transport, got %T", client.Transport)
	}
	if transport.Proxy == nil {
		t.Error("Expected proxy function to be set")
	}
}
