package evaluator

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const openaiDefaultModel = openai.ChatModelGPT4oMini

// OpenAIProvider implements Provider over the OpenAI chat completions API.
type OpenAIProvider struct {
	client openai.Client
	model  string
	apiKey string
}

// NewOpenAI creates an OpenAI provider. model may be empty for the default.
func NewOpenAI(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = openaiDefaultModel
	}
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		apiKey: apiKey,
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate runs a single-prompt chat completion.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if p.apiKey == "" {
		return "", &Error{Provider: p.Name(), Message: "api key not configured"}
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", p.classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Provider: p.Name(), Message: "no response choices returned"}
	}

	return resp.Choices[0].Message.Content, nil
}

// classifyError maps SDK errors into the provider error class.
func (p *OpenAIProvider) classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &Error{
			Provider:    p.Name(),
			Status:      apiErr.StatusCode,
			Message:     apiErr.Message,
			RateLimited: apiErr.StatusCode == http.StatusTooManyRequests,
		}
	}
	return &Error{Provider: p.Name(), Message: err.Error()}
}
