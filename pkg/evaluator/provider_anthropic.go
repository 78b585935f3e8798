package evaluator

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	anthropicDefaultModel     = "claude-sonnet-4-0"
	anthropicDefaultMaxTokens = 1024
)

// AnthropicProvider implements Provider over the Anthropic messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
	apiKey string
}

// NewAnthropic creates an Anthropic provider. model may be empty for the
// default.
func NewAnthropic(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = anthropicDefaultModel
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		apiKey: apiKey,
	}
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Generate runs a single-prompt message exchange. The messages API has no
// JSON response switch, so jsonMode only tightens the prompt.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if p.apiKey == "" {
		return "", &Error{Provider: p.Name(), Message: "api key not configured"}
	}

	if jsonMode {
		prompt += "\n\nRespond with the raw JSON object only, no markdown fences."
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: anthropicDefaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", p.classifyError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &Error{Provider: p.Name(), Message: "no text content in response"}
	}

	return sb.String(), nil
}

// classifyError maps SDK errors into the provider error class.
func (p *AnthropicProvider) classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &Error{
			Provider:    p.Name(),
			Status:      apiErr.StatusCode,
			Message:     apiErr.Error(),
			RateLimited: apiErr.StatusCode == http.StatusTooManyRequests,
		}
	}
	return &Error{Provider: p.Name(), Message: err.Error()}
}
