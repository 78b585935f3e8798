// Package speech renders examiner utterances as audio through the ElevenLabs
// text-to-speech API. Failures here are always recoverable: callers receive
// an error, log it, and the turn proceeds without audio.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultVoiceID = "IKne3meq5aSn9XLyUdCD"
	defaultModelID = "eleven_turbo_v2"

	// errorBodyLimit caps how much of a failed response is kept for logs.
	errorBodyLimit = 512
)

// ErrUnavailable wraps every synthesis failure so callers can treat them
// uniformly as "no audio this turn".
var ErrUnavailable = errors.New("speech synthesis unavailable")

// Client calls the ElevenLabs text-to-speech API and returns audio as an
// embeddable data URI.
type Client struct {
	apiKey     string
	voiceID    string
	modelID    string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithVoice overrides the default voice.
func WithVoice(voiceID string) Option {
	return func(c *Client) {
		if voiceID != "" {
			c.voiceID = voiceID
		}
	}
}

// WithModel overrides the default synthesis model.
func WithModel(modelID string) Option {
	return func(c *Client) {
		if modelID != "" {
			c.modelID = modelID
		}
	}
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient creates a speech client. An empty API key is allowed; synthesis
// then reports unavailable and sessions run text-only.
func NewClient(apiKey string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		voiceID:    defaultVoiceID,
		modelID:    defaultModelID,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
}

// Synthesize sanitizes the text and renders it as MP3 audio, returned as a
// data URI for in-band playback. Every failure path returns a wrapped
// ErrUnavailable and never panics.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: api key not configured", ErrUnavailable)
	}

	body, err := json.Marshal(synthesisRequest{
		Text:    SanitizeForSpeech(text),
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.45,
			SimilarityBoost: 0.75,
			Style:           0.3,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			c.logger.Error().Int("status", resp.StatusCode).Msg("ElevenLabs rejected the API key or quota is exhausted")
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read audio: %v", ErrUnavailable, err)
	}

	return "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(audio), nil
}
