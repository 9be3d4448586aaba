package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultSynthesisPath = "/api/velma-2-tts"
	defaultVoice         = "default"
	defaultStreamTimeout = 60 * time.Second
)

// StreamProvider is the provider identifier for the streaming client.
const StreamProvider = "velma_tts_stream"

// StreamClient synthesizes speech through the provider's streaming HTTP
// endpoint. The response body is consumed as chunked audio and returned as
// one payload.
type StreamClient struct {
	baseURL    string
	apiKey     string
	path       string
	voice      string
	timeout    time.Duration
	httpClient *http.Client
}

var _ Synthesizer = (*StreamClient)(nil)

// StreamOption configures a StreamClient.
type StreamOption func(*StreamClient)

// WithDefaultVoice sets the voice used when the caller passes none.
func WithDefaultVoice(voice string) StreamOption {
	return func(c *StreamClient) { c.voice = voice }
}

// WithTimeout sets the overall request deadline.
func WithTimeout(d time.Duration) StreamOption {
	return func(c *StreamClient) { c.timeout = d }
}

// WithHTTPClient sets the HTTP client used for synthesis requests.
func WithHTTPClient(hc *http.Client) StreamOption {
	return func(c *StreamClient) { c.httpClient = hc }
}

// NewStreamClient creates a streaming synthesis client.
func NewStreamClient(baseURL, apiKey string, opts ...StreamOption) *StreamClient {
	c := &StreamClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		path:       defaultSynthesisPath,
		voice:      defaultVoice,
		timeout:    defaultStreamTimeout,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type synthesisRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// Synthesize requests audio for the given text. A non-200 response or an
// empty audio stream is an error; callers wanting resilience wrap the client
// with WithFallback.
func (c *StreamClient) Synthesize(ctx context.Context, text, voice string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if voice == "" {
		voice = c.voice
	}
	payload, err := json.Marshal(synthesisRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Provider: StreamProvider, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{Provider: StreamProvider, HTTPStatus: resp.StatusCode, Message: string(body)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Provider: StreamProvider, Message: fmt.Sprintf("read stream: %v", err)}
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	return &Result{Audio: audio, MIMEType: mime, Provider: StreamProvider}, nil
}
