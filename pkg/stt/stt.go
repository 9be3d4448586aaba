// Package stt provides speech-to-text transcription for the voice loop.
//
// The Client speaks the provider's two transports: a low-latency websocket
// streaming endpoint and a multipart batch endpoint used as fallback. A
// deterministic mock mode bypasses both for tests and demos.
package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Transport identifies the channel a transcript was obtained through.
type Transport string

const (
	TransportStreaming Transport = "streaming"
	TransportBatch     Transport = "batch"
	TransportMock      Transport = "mock"
)

// Utterance is the provider's view of one spoken segment.
type Utterance struct {
	ID         string `json:"utterance_uuid" msgpack:"utterance_uuid"`
	Text       string `json:"text" msgpack:"text"`
	StartMS    int    `json:"start_ms" msgpack:"start_ms"`
	DurationMS int    `json:"duration_ms" msgpack:"duration_ms"`
	Speaker    *int   `json:"speaker" msgpack:"speaker"`
	Language   string `json:"language,omitempty" msgpack:"language,omitempty"`
	Emotion    string `json:"emotion,omitempty" msgpack:"emotion,omitempty"`
	Accent     string `json:"accent,omitempty" msgpack:"accent,omitempty"`
}

// Transcript is the result of one transcription call.
type Transcript struct {
	Text       string          `json:"text" msgpack:"text"`
	DurationMS int             `json:"duration_ms" msgpack:"duration_ms"`
	Utterances []Utterance     `json:"utterances" msgpack:"utterances"`
	Transport  Transport       `json:"transport" msgpack:"transport"`
	Raw        json.RawMessage `json:"raw_provider_payload,omitempty" msgpack:"raw_provider_payload,omitempty"`
}

// Transcriber converts raw audio bytes into a Transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType, sessionID string) (*Transcript, error)
}

// TranscribeFunc adapts a function to the Transcriber interface.
type TranscribeFunc func(ctx context.Context, audio []byte, contentType, sessionID string) (*Transcript, error)

// Transcribe calls the underlying function.
func (f TranscribeFunc) Transcribe(ctx context.Context, audio []byte, contentType, sessionID string) (*Transcript, error) {
	return f(ctx, audio, contentType, sessionID)
}

// Error is a transcription provider error.
type Error struct {
	// Transport is the transport that produced the error.
	Transport Transport

	// HTTPStatus is the HTTP status code, when the error came from the
	// batch endpoint. Zero otherwise.
	HTTPStatus int

	// Message is the provider-reported or transport-level detail.
	Message string
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("stt: %s transport failed: status=%d %s", e.Transport, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("stt: %s transport failed: %s", e.Transport, e.Message)
}

// AsError extracts *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GuessExtension maps an upload content type to the short file extension the
// batch endpoint expects. Unknown and empty types default to opus.
func GuessExtension(contentType string) string {
	switch contentType {
	case "audio/ogg":
		return "ogg"
	case "audio/opus":
		return "opus"
	case "audio/wav":
		return "wav"
	case "audio/webm":
		return "webm"
	case "audio/mpeg":
		return "mp3"
	case "application/octet-stream":
		return "opus"
	default:
		return "opus"
	}
}
