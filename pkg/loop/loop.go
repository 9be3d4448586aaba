// Package loop orchestrates one voice turn end to end: persist the
// session, transcribe the audio, derive conversation signals, generate
// the assistant reply, synthesize it, and record the finished turn.
//
// The turn path has two failure classes. Provider stages (transcribe,
// generate, synthesize) abort the turn with a StageError and persist no
// partial turn. Side channels (audit events, audio archival) only log:
// a turn never fails because its paper trail could not be written.
package loop

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/almosthuman-ai/voiceloop/pkg/archive"
	"github.com/almosthuman-ai/voiceloop/pkg/respond"
	"github.com/almosthuman-ai/voiceloop/pkg/session"
	"github.com/almosthuman-ai/voiceloop/pkg/signal"
	"github.com/almosthuman-ai/voiceloop/pkg/stt"
	"github.com/almosthuman-ai/voiceloop/pkg/tts"
)

// ErrInvalidInput is returned for requests the loop refuses to start,
// such as an empty audio body.
var ErrInvalidInput = errors.New("loop: invalid input")

// StageError marks which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("loop: %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Loop wires the pipeline stages together.
type Loop struct {
	store       *session.Store
	transcriber stt.Transcriber
	generator   respond.Generator
	synthesizer tts.Synthesizer
	archive     archive.Store
}

// Option configures a Loop.
type Option func(*Loop)

// WithArchive attaches a blob store where the loop keeps raw input and
// reply audio per turn. Archive failures never fail a turn.
func WithArchive(store archive.Store) Option {
	return func(l *Loop) { l.archive = store }
}

// New builds a voice loop over the given stages.
func New(store *session.Store, transcriber stt.Transcriber, generator respond.Generator, synthesizer tts.Synthesizer, opts ...Option) *Loop {
	l := &Loop{
		store:       store,
		transcriber: transcriber,
		generator:   generator,
		synthesizer: synthesizer,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StartResult is the outcome of StartSession.
type StartResult struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	SessionID    string            `json:"session_id"`
	Transcript   *stt.Transcript   `json:"transcript"`
	Signals      signal.Bundle     `json:"signals"`
	Response     *respond.Response `json:"llm_response"`
	TTSAudioB64  string            `json:"tts_audio_b64"`
	TTSMIMEType  string            `json:"tts_mime_type"`
	TTSProvider  string            `json:"tts_provider"`
	OutputStatus string            `json:"output_status"`
}

// SessionView is a session record together with its event stream.
type SessionView struct {
	Session *session.Session `json:"session"`
	Events  []session.Event  `json:"events"`
}

// StartSession creates a fresh session and returns its id.
func (l *Loop) StartSession(ctx context.Context) (*StartResult, error) {
	id := uuid.NewString()
	if _, err := l.store.Create(ctx, id); err != nil {
		return nil, err
	}
	l.appendEvent(ctx, id, session.EventSessionStarted, map[string]any{})
	return &StartResult{SessionID: id, Status: "started"}, nil
}

// GetSession returns a session record with its event stream.
func (l *Loop) GetSession(ctx context.Context, id string) (*SessionView, error) {
	rec, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := l.store.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SessionView{Session: rec, Events: events}, nil
}

// Process runs one full voice turn. An empty sessionID mints a new
// session; a non-empty one must already exist, checked before any event
// is written or any provider is called.
func (l *Loop) Process(ctx context.Context, audio []byte, contentType, sessionID string) (*TurnResult, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio body", ErrInvalidInput)
	}

	var rec *session.Session
	var err error
	if sessionID == "" {
		sessionID = uuid.NewString()
		rec, err = l.store.Create(ctx, sessionID)
	} else {
		rec, err = l.store.Get(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	// Archive keys carry an id minted per invocation, not the turn count:
	// two racing turns on one session must never share a key.
	turnID := uuid.NewString()

	l.appendEvent(ctx, sessionID, session.EventAudioReceived, map[string]any{
		"content_type": contentType,
		"size_bytes":   len(audio),
	})
	l.archivePut(ctx, archive.InputKey(sessionID, turnID, stt.GuessExtension(contentType)), contentType, audio)

	transcript, err := l.transcriber.Transcribe(ctx, audio, contentType, sessionID)
	if err != nil {
		return nil, &StageError{Stage: "transcribe", Err: err}
	}
	l.appendEvent(ctx, sessionID, session.EventSTTCompleted, map[string]any{
		"transport":       string(transcript.Transport),
		"text":            transcript.Text,
		"duration_ms":     transcript.DurationMS,
		"utterance_count": len(transcript.Utterances),
	})

	signals := signal.Derive(transcript)

	reply, err := l.generator.Generate(ctx, &respond.Request{
		SessionID: sessionID,
		UserText:  transcript.Text,
		History:   historyMessages(rec.Turns),
		Signals:   &signals,
	})
	if err != nil {
		return nil, &StageError{Stage: "generate", Err: err}
	}

	speech, err := l.synthesizer.Synthesize(ctx, reply.Text, "")
	if err != nil {
		return nil, &StageError{Stage: "synthesize", Err: err}
	}
	l.archivePut(ctx, archive.ReplyKey(sessionID, turnID, audioExtension(speech.MIMEType)), speech.MIMEType, speech.Audio)

	turn := session.Turn{
		Timestamp:     time.Now().UTC(),
		UserText:      transcript.Text,
		Utterances:    transcript.Utterances,
		Signals:       signals,
		AgentText:     reply.Text,
		AudioMIMEType: speech.MIMEType,
		AudioProvider: speech.Provider,
	}
	if _, err := l.store.AppendTurn(ctx, sessionID, turn); err != nil {
		return nil, err
	}
	l.appendEvent(ctx, sessionID, session.EventTurnCompleted, map[string]any{
		"agent_text":     reply.Text,
		"audio_provider": speech.Provider,
	})

	slog.Info("voice loop completed",
		"session_id", sessionID,
		"transport", transcript.Transport,
		"utterances", len(transcript.Utterances))

	return &TurnResult{
		SessionID:    sessionID,
		Transcript:   transcript,
		Signals:      signals,
		Response:     reply,
		TTSAudioB64:  base64.StdEncoding.EncodeToString(speech.Audio),
		TTSMIMEType:  speech.MIMEType,
		TTSProvider:  speech.Provider,
		OutputStatus: "audio_generated",
	}, nil
}

func (l *Loop) appendEvent(ctx context.Context, id, eventType string, payload map[string]any) {
	if err := l.store.AppendEvent(ctx, id, eventType, payload); err != nil {
		slog.Error("event append failed", "session_id", id, "event_type", eventType, "error", err)
	}
}

func (l *Loop) archivePut(ctx context.Context, key, contentType string, data []byte) {
	if l.archive == nil {
		return
	}
	if err := l.archive.Put(ctx, key, contentType, data); err != nil {
		slog.Error("audio archive failed", "key", key, "error", err)
	}
}

// historyMessages flattens prior turns into role-tagged messages for
// the response generator's rolling summary.
func historyMessages(turns []session.Turn) []respond.Message {
	var msgs []respond.Message
	for _, t := range turns {
		msgs = append(msgs,
			respond.Message{Role: "user", Content: t.UserText},
			respond.Message{Role: "assistant", Content: t.AgentText},
		)
	}
	return msgs
}

// audioExtension maps a synthesis media type to a file extension for
// archive keys.
func audioExtension(mimeType string) string {
	switch mimeType {
	case "audio/wav":
		return "wav"
	case "audio/mpeg":
		return "mp3"
	case "audio/ogg":
		return "ogg"
	default:
		return "bin"
	}
}
