package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicMessager is the subset of the Anthropic SDK client we use.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicClientCreator builds a messager for an API key.
type AnthropicClientCreator func(apiKey string, opts ...option.RequestOption) AnthropicMessager

func defaultAnthropicCreator(apiKey string, opts ...option.RequestOption) AnthropicMessager {
	c := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

// defaultAnthropicMaxTokens is used when a request leaves MaxTokens unset;
// the Messages API requires a value.
const defaultAnthropicMaxTokens = 2048

// AnthropicClient adapts the Anthropic Messages API to Runtime.
type AnthropicClient struct {
	messages AnthropicMessager
	apiKey   string
}

// NewAnthropicClient creates a client; baseURL may be empty.
func NewAnthropicClient(apiKey, baseURL string, opts ...option.RequestOption) *AnthropicClient {
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{messages: newAnthropicClient(apiKey, opts...), apiKey: apiKey}
}

// Generate sends one Messages API call. System messages are joined into the
// system prompt; user and assistant turns keep their order.
func (a *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if a.apiKey == "" {
		return nil, errors.New("anthropic API key is missing (set CHARTLOOM_API_KEY or ANTHROPIC_API_KEY)")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = defaultAnthropicMaxTokens
	}
	if req.Temperature > 0 {
		// The Messages API caps temperature at 1.
		params.Temperature = anthropic.Float(min(req.Temperature, 1))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(params.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	resp, err := a.messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyAnthropicError(err)
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return &GenerateResponse{
		ID:        resp.ID,
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: sb.String()}}},
		Usage:     Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
		RequestID: resp.ID,
	}, nil
}

// classifyAnthropicError maps SDK status errors onto the package's typed errors.
func classifyAnthropicError(err error) error {
	var apierr *anthropic.Error
	if !errors.As(err, &apierr) {
		return &UnreachableError{Host: "api.anthropic.com", Err: err}
	}
	base := &APIError{StatusCode: apierr.StatusCode, Message: err.Error()}
	switch sc := apierr.StatusCode; {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: base}
	case sc == http.StatusTooManyRequests:
		return &RateLimitError{APIError: base}
	case sc == http.StatusNotFound:
		return &ModelNotFoundError{APIError: base}
	case sc == http.StatusBadRequest:
		return &BadRequestError{APIError: base}
	case sc >= 500:
		return &ServerError{APIError: base}
	}
	return fmt.Errorf("anthropic: %w", base)
}
