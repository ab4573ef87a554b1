package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const (
	claudeDefaultModel = "claude-sonnet-4-5-20250929"
	claudeRetryMax     = 3
	claudeRetryBase    = time.Second

	anthropicVersionHeader = "2023-06-01"
)

// ClaudeProvider talks to the Anthropic messages API.
type ClaudeProvider struct {
	apiKey    string
	authToken string
	baseURL   string
	model     string
	retryMax  int
	retryBase time.Duration
}

func NewClaudeProvider(apiKey, baseURL, model string) *ClaudeProvider {
	p := &ClaudeProvider{
		apiKey:    strings.TrimSpace(apiKey),
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:     strings.TrimSpace(model),
		retryMax:  claudeRetryMax,
		retryBase: claudeRetryBase,
	}
	if p.model == "" {
		p.model = claudeDefaultModel
	}
	if p.baseURL == "" {
		if v := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); v != "" {
			p.baseURL = strings.TrimRight(v, "/")
		}
	}
	if p.apiKey == "" {
		if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
			p.apiKey = v
		} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
			p.authToken = v
		}
	}
	return p
}

func (p *ClaudeProvider) Name() string {
	return "claude"
}

// APIError represents a non-2xx response from the Claude API.
type APIError struct {
	StatusCode int
	Status     string
	RequestID  string
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return "llm: claude: api error <nil>"
	}
	msg := strings.TrimSpace(e.Message)
	switch {
	case e.Type != "" && msg != "":
		return fmt.Sprintf("llm: claude: api error (%s): %s: %s", e.Status, e.Type, msg)
	case msg != "":
		return fmt.Sprintf("llm: claude: api error (%s): %s", e.Status, msg)
	default:
		return fmt.Sprintf("llm: claude: api error (%s)", e.Status)
	}
}

func (p *ClaudeProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil {
		return nil, errors.New("llm: claude: nil provider")
	}
	if ctx == nil {
		return nil, errors.New("llm: claude: nil context")
	}
	if req == nil {
		return nil, errors.New("llm: claude: nil request")
	}
	if strings.TrimSpace(p.apiKey) == "" && strings.TrimSpace(p.authToken) == "" {
		return nil, errors.New("llm: claude: missing api key")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(req.User),
			},
		}},
	}
	if system := strings.TrimSpace(req.System); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system, Type: "text"}}
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}

	sdk := p.newSDKClient()
	retryMax := p.retryMax
	retryBase := p.retryBase
	if retryBase <= 0 {
		retryBase = claudeRetryBase
	}

	for attempt := 0; ; attempt++ {
		msg, err := sdk.Messages.New(ctx, params)
		if err != nil {
			err = normalizeClaudeError(err)
			if !claudeShouldRetry(err) || attempt >= retryMax {
				return nil, err
			}
			if err := sleepWithContext(ctx, retryBackoff(retryBase, attempt)); err != nil {
				return nil, err
			}
			continue
		}
		return fromSDKMessage(msg), nil
	}
}

func (p *ClaudeProvider) newSDKClient() *anthropic.Client {
	opts := make([]option.RequestOption, 0, 4)
	if base := strings.TrimSpace(p.baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/v1")))
	}
	if strings.TrimSpace(p.apiKey) != "" {
		opts = append(opts, option.WithAPIKey(p.apiKey))
	} else if strings.TrimSpace(p.authToken) != "" {
		opts = append(opts, option.WithAuthToken(p.authToken))
	}
	opts = append(opts, option.WithMaxRetries(0))
	opts = append(opts, option.WithHeader("anthropic-version", anthropicVersionHeader))

	client := anthropic.NewClient(opts...)
	return &client
}

func fromSDKMessage(msg *anthropic.Message) *Response {
	if msg == nil {
		return nil
	}

	out := &Response{
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	out.Text = sb.String()
	return out
}

type claudeErrorEnvelope struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func normalizeClaudeError(err error) error {
	if err == nil {
		return nil
	}

	var sdkErr *anthropic.Error
	if !errors.As(err, &sdkErr) {
		return err
	}

	apiErr := &APIError{
		StatusCode: sdkErr.StatusCode,
		RequestID:  sdkErr.RequestID,
	}
	if sdkErr.Response != nil {
		apiErr.Status = sdkErr.Response.Status
	} else if sdkErr.StatusCode != 0 {
		apiErr.Status = fmt.Sprintf("%d %s", sdkErr.StatusCode, http.StatusText(sdkErr.StatusCode))
	}

	if raw := strings.TrimSpace(sdkErr.RawJSON()); raw != "" {
		var env claudeErrorEnvelope
		if json.Unmarshal([]byte(raw), &env) == nil {
			apiErr.Type = env.Error.Type
			apiErr.Message = env.Error.Message
		}
	}
	return apiErr
}

func claudeShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			(apiErr.StatusCode >= 500 && apiErr.StatusCode <= 599)
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func retryBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		return 0
	}
	return base * time.Duration(1<<attempt)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
