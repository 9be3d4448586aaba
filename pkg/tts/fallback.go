package tts

import (
	"context"
	"log/slog"
)

// Fallback chains a preferred synthesizer with a backup. Any failure of the
// primary, including an empty audio payload, engages the backup, so a
// Fallback whose backup is Tone never fails.
type Fallback struct {
	primary Synthesizer
	backup  Synthesizer
}

var _ Synthesizer = (*Fallback)(nil)

// WithFallback wraps primary so that errors route to backup.
func WithFallback(primary, backup Synthesizer) *Fallback {
	return &Fallback{primary: primary, backup: backup}
}

// Synthesize tries the primary synthesizer and falls back on any error.
func (f *Fallback) Synthesize(ctx context.Context, text, voice string) (*Result, error) {
	res, err := f.primary.Synthesize(ctx, text, voice)
	if err == nil {
		return res, nil
	}
	slog.Warn("primary tts failed, using fallback synthesizer", "error", err)
	return f.backup.Synthesize(ctx, text, voice)
}
