package llm

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestAPIError_Error(t *testing.T) {
	var nilErr *APIError
	if got := nilErr.Error(); !strings.Contains(got, "<nil>") {
		t.Fatalf("nil error string: %q", got)
	}

	e := &APIError{Status: "429 Too Many Requests", Type: "rate_limit_error", Message: "slow down"}
	got := e.Error()
	if !strings.Contains(got, "429") || !strings.Contains(got, "rate_limit_error") || !strings.Contains(got, "slow down") {
		t.Fatalf("error string: %q", got)
	}
}

func TestClaudeShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limited", err: &APIError{StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "server error", err: &APIError{StatusCode: http.StatusBadGateway}, want: true},
		{name: "bad request", err: &APIError{StatusCode: http.StatusBadRequest}, want: false},
		{name: "auth failure", err: &APIError{StatusCode: http.StatusUnauthorized}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}
	for _, tc := range cases {
		if got := claudeShouldRetry(tc.err); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestRetryBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	if got := retryBackoff(base, 0); got != base {
		t.Fatalf("attempt 0: got %v want %v", got, base)
	}
	if got := retryBackoff(base, 2); got != 4*base {
		t.Fatalf("attempt 2: got %v want %v", got, 4*base)
	}
	if got := retryBackoff(0, 3); got != 0 {
		t.Fatalf("zero base: got %v want 0", got)
	}
	if got := retryBackoff(base, -1); got != 0 {
		t.Fatalf("negative attempt: got %v want 0", got)
	}
}

func TestNewClaudeProvider_Defaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ANTHROPIC_AUTH_TOKEN", "")
	t.Setenv("ANTHROPIC_BASE_URL", "")

	p := NewClaudeProvider("key", "https://proxy.example.com/", "")
	if p.model != claudeDefaultModel {
		t.Fatalf("model: %q", p.model)
	}
	if p.baseURL != "https://proxy.example.com" {
		t.Fatalf("base url: %q", p.baseURL)
	}
}
