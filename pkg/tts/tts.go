// Package tts converts agent reply text into audio.
//
// A streaming provider client is the preferred path; a deterministic local
// tone generator guarantees the pipeline can always produce audio when the
// provider is unreachable.
package tts

import (
	"context"
	"errors"
	"fmt"
)

// Result is the outcome of one synthesis call.
type Result struct {
	// Audio is the encoded audio payload. Never empty on success.
	Audio []byte

	// MIMEType describes the audio container (e.g. audio/mpeg, audio/wav).
	MIMEType string

	// Provider identifies which synthesizer produced the audio.
	Provider string
}

// Synthesizer converts text into speech audio. An empty voice selects the
// implementation's default.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*Result, error)
}

// SynthesizeFunc adapts a function to the Synthesizer interface.
type SynthesizeFunc func(ctx context.Context, text, voice string) (*Result, error)

// Synthesize calls the underlying function.
func (f SynthesizeFunc) Synthesize(ctx context.Context, text, voice string) (*Result, error) {
	return f(ctx, text, voice)
}

// ErrEmptyAudio is returned when a provider reports success but delivers no
// audio bytes.
var ErrEmptyAudio = errors.New("tts: provider returned empty audio payload")

// Error is a synthesis provider error.
type Error struct {
	Provider   string
	HTTPStatus int
	Message    string
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("tts: %s failed: status=%d %s", e.Provider, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("tts: %s failed: %s", e.Provider, e.Message)
}

// AsError extracts *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
