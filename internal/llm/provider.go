package llm

import "context"

// Provider is a single chat-completion backend (Claude, OpenAI, or a
// compatible endpoint behind one of their SDKs).
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

type Request struct {
	System      string
	User        string
	Model       string
	MaxTokens   int
	Temperature float64
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type Response struct {
	Text       string
	StopReason string
	Usage      Usage
}
