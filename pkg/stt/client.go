package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultStreamingPath = "/api/velma-2-stt-streaming"
	defaultBatchPath     = "/api/velma-2-stt-batch"

	// defaultStreamTimeout bounds a whole streaming session. The provider
	// is expected to emit a terminal "done" frame, but the deadline keeps
	// a silent provider from hanging a turn forever.
	defaultStreamTimeout = 60 * time.Second

	defaultBatchTimeout = 90 * time.Second

	// streamChunkSize is the binary frame size for streaming uploads.
	streamChunkSize = 8192

	defaultMockTranscript = "Hello, I need to schedule a dentist appointment next Tuesday morning."
)

// Features are the boolean tagging switches forwarded to the provider.
type Features struct {
	SpeakerDiarization bool
	EmotionSignal      bool
	AccentSignal       bool
	PIIPHITagging      bool
}

// AllFeatures enables every tagging feature.
func AllFeatures() Features {
	return Features{
		SpeakerDiarization: true,
		EmotionSignal:      true,
		AccentSignal:       true,
		PIIPHITagging:      true,
	}
}

// Client talks to the transcription provider.
type Client struct {
	baseURL         string
	apiKey          string
	streamingPath   string
	batchPath       string
	preferStreaming bool
	features        Features
	mock            bool
	mockTranscript  string
	streamTimeout   time.Duration
	batchTimeout    time.Duration
	httpClient      *http.Client
	dialer          *websocket.Dialer
}

var _ Transcriber = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithPreferStreaming controls whether the streaming transport is attempted
// before batch. Enabled by default.
func WithPreferStreaming(prefer bool) Option {
	return func(c *Client) { c.preferStreaming = prefer }
}

// WithFeatures sets the provider tagging switches.
func WithFeatures(f Features) Option {
	return func(c *Client) { c.features = f }
}

// WithMock enables the deterministic offline mode. Both transports are
// bypassed and every call returns the given transcript text. Pass "" for the
// default text.
func WithMock(transcript string) Option {
	return func(c *Client) {
		c.mock = true
		if transcript != "" {
			c.mockTranscript = transcript
		}
	}
}

// WithStreamTimeout sets the overall deadline for a streaming session.
func WithStreamTimeout(d time.Duration) Option {
	return func(c *Client) { c.streamTimeout = d }
}

// WithBatchTimeout sets the request deadline for a batch upload.
func WithBatchTimeout(d time.Duration) Option {
	return func(c *Client) { c.batchTimeout = d }
}

// WithHTTPClient sets the HTTP client used for batch uploads.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a transcription client for the given provider base URL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          apiKey,
		streamingPath:   defaultStreamingPath,
		batchPath:       defaultBatchPath,
		preferStreaming: true,
		features:        AllFeatures(),
		mockTranscript:  defaultMockTranscript,
		streamTimeout:   defaultStreamTimeout,
		batchTimeout:    defaultBatchTimeout,
		httpClient:      http.DefaultClient,
		dialer:          websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe converts audio bytes into a Transcript.
//
// In mock mode it returns the fixed transcript. Otherwise the streaming
// transport is tried first when preferred; any streaming failure is logged
// and the same bytes are resubmitted through the batch endpoint. Only a
// batch failure propagates to the caller.
func (c *Client) Transcribe(ctx context.Context, audio []byte, contentType, sessionID string) (*Transcript, error) {
	if c.mock {
		return c.mockResult(), nil
	}

	if c.preferStreaming {
		tr, err := c.transcribeStreaming(ctx, audio)
		if err == nil {
			return tr, nil
		}
		slog.Warn("streaming stt failed, falling back to batch",
			"session_id", sessionID, "error", err)
	}

	return c.transcribeBatch(ctx, audio, contentType, sessionID)
}

// streamFrame is one JSON frame from the streaming endpoint.
type streamFrame struct {
	Type       string          `json:"type"`
	Utterance  json.RawMessage `json:"utterance,omitempty"`
	DurationMS int             `json:"duration_ms,omitempty"`
	ErrorMsg   string          `json:"error,omitempty"`
}

func (c *Client) transcribeStreaming(ctx context.Context, audio []byte) (*Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, c.streamTimeout)
	defer cancel()

	wsURL, err := c.streamingURL()
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, &Error{Transport: TransportStreaming, HTTPStatus: resp.StatusCode, Message: err.Error()}
		}
		return nil, &Error{Transport: TransportStreaming, Message: err.Error()}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	// Send the audio as fixed-size binary frames, then an empty text frame
	// as the end-of-stream marker.
	for off := 0; off < len(audio); off += streamChunkSize {
		end := min(off+streamChunkSize, len(audio))
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[off:end]); err != nil {
			return nil, &Error{Transport: TransportStreaming, Message: fmt.Sprintf("send frame: %v", err)}
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, nil); err != nil {
		return nil, &Error{Transport: TransportStreaming, Message: fmt.Sprintf("send eos: %v", err)}
	}

	var (
		utterances []Utterance
		rawFrames  []json.RawMessage
		durationMS int
	)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil, &Error{Transport: TransportStreaming, Message: fmt.Sprintf("read frame: %v", err)}
		}
		if msgType != websocket.TextMessage {
			continue
		}

		rawFrames = append(rawFrames, json.RawMessage(bytes.Clone(data)))
		var frame streamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, &Error{Transport: TransportStreaming, Message: fmt.Sprintf("malformed frame: %v", err)}
		}

		switch frame.Type {
		case "utterance":
			var u Utterance
			if err := json.Unmarshal(frame.Utterance, &u); err != nil {
				return nil, &Error{Transport: TransportStreaming, Message: fmt.Sprintf("malformed utterance: %v", err)}
			}
			utterances = append(utterances, u)
		case "done":
			durationMS = frame.DurationMS
			return c.assembleStreaming(utterances, rawFrames, durationMS), nil
		case "error":
			msg := frame.ErrorMsg
			if msg == "" {
				msg = "unknown streaming stt error"
			}
			return nil, &Error{Transport: TransportStreaming, Message: msg}
		}
	}
}

func (c *Client) assembleStreaming(utterances []Utterance, rawFrames []json.RawMessage, durationMS int) *Transcript {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		parts = append(parts, u.Text)
	}
	raw, _ := json.Marshal(map[string]any{"messages": rawFrames})
	return &Transcript{
		Text:       strings.TrimSpace(strings.Join(parts, " ")),
		DurationMS: durationMS,
		Utterances: utterances,
		Transport:  TransportStreaming,
		Raw:        raw,
	}
}

// streamingURL builds the websocket URL with the API key and feature flags
// as query parameters.
func (c *Client) streamingURL() (string, error) {
	u, err := url.Parse(c.baseURL + c.streamingPath)
	if err != nil {
		return "", fmt.Errorf("stt: parse streaming url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("speaker_diarization", strconv.FormatBool(c.features.SpeakerDiarization))
	q.Set("emotion_signal", strconv.FormatBool(c.features.EmotionSignal))
	q.Set("accent_signal", strconv.FormatBool(c.features.AccentSignal))
	q.Set("pii_phi_tagging", strconv.FormatBool(c.features.PIIPHITagging))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// batchResponse is the JSON body of a successful batch upload.
type batchResponse struct {
	Text       string      `json:"text"`
	DurationMS int         `json:"duration_ms"`
	Utterances []Utterance `json:"utterances"`
}

func (c *Client) transcribeBatch(ctx context.Context, audio []byte, contentType, sessionID string) (*Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, c.batchTimeout)
	defer cancel()

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("upload_file", fmt.Sprintf("%s.%s", sessionID, GuessExtension(contentType)))
	if err != nil {
		return nil, fmt.Errorf("stt: build form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("stt: build form: %w", err)
	}
	fields := map[string]bool{
		"speaker_diarization": c.features.SpeakerDiarization,
		"emotion_signal":      c.features.EmotionSignal,
		"accent_signal":       c.features.AccentSignal,
		"pii_phi_tagging":     c.features.PIIPHITagging,
	}
	for name, val := range fields {
		if err := form.WriteField(name, strconv.FormatBool(val)); err != nil {
			return nil, fmt.Errorf("stt: build form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("stt: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.batchPath, &body)
	if err != nil {
		return nil, fmt.Errorf("stt: create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Transport: TransportBatch, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Transport: TransportBatch, Message: fmt.Sprintf("read body: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Transport: TransportBatch, HTTPStatus: resp.StatusCode, Message: string(respBody)}
	}

	var parsed batchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &Error{Transport: TransportBatch, Message: fmt.Sprintf("malformed response: %v", err)}
	}

	return &Transcript{
		Text:       parsed.Text,
		DurationMS: parsed.DurationMS,
		Utterances: parsed.Utterances,
		Transport:  TransportBatch,
		Raw:        json.RawMessage(respBody),
	}, nil
}

// mockResult returns the fixed offline transcript: one English utterance
// tagged Neutral, 4200ms.
func (c *Client) mockResult() *Transcript {
	speaker := 1
	u := Utterance{
		ID:         uuid.NewString(),
		Text:       c.mockTranscript,
		StartMS:    0,
		DurationMS: 4200,
		Speaker:    &speaker,
		Language:   "en",
		Emotion:    "Neutral",
		Accent:     "American",
	}
	raw, _ := json.Marshal(map[string]any{"mock": true})
	return &Transcript{
		Text:       c.mockTranscript,
		DurationMS: 4200,
		Utterances: []Utterance{u},
		Transport:  TransportMock,
		Raw:        raw,
	}
}
