package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel   = "gemini-2.5-flash"
)

// GeminiProvider calls the Google Gemini generateContent API directly.
type GeminiProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// GeminiOption customizes a GeminiProvider.
type GeminiOption func(*GeminiProvider)

// WithGeminiModel overrides the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithGeminiBaseURL overrides the API endpoint, mainly for tests.
func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(p *GeminiProvider) {
		if baseURL != "" {
			p.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithGeminiHTTPClient overrides the HTTP client.
func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(p *GeminiProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewGemini creates a Gemini provider. An empty API key is allowed; calls
// then fail with a classified error and callers degrade to their fallbacks.
func NewGemini(apiKey string, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey:     strings.TrimSpace(apiKey),
		model:      geminiDefaultModel,
		baseURL:    geminiDefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Gemini API request/response shapes. The API uses camelCase field names.
type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends a single-prompt generateContent request and returns the
// first candidate's text.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if p.apiKey == "" {
		return "", &Error{Provider: p.Name(), Message: "api key not configured"}
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	if jsonMode {
		reqBody.GenerationConfig = &geminiGenConfig{ResponseMIMEType: "application/json"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", p.parseError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Error{Provider: p.Name(), Message: fmt.Sprintf("unparsable response: %v", err)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &Error{Provider: p.Name(), Message: "no candidates in response"}
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// parseError maps an error response to the provider error class. HTTP 429
// and RESOURCE_EXHAUSTED both count as rate limiting.
func (p *GeminiProvider) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	apiErr := &Error{
		Provider: p.Name(),
		Status:   resp.StatusCode,
		Message:  strings.TrimSpace(string(body)),
	}

	var parsed geminiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		if parsed.Error.Status == "RESOURCE_EXHAUSTED" {
			apiErr.RateLimited = true
		}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RateLimited = true
	}

	return apiErr
}
