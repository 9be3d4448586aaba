// Package session stores conversation sessions and their audit event logs.
//
// A Session is an append-only ordered list of Turns plus a separate
// append-only Event stream. Records are msgpack-encoded into a kv.Store:
//
//	sess:{id}        → Session record (turn history embedded)
//	evt:{id}:{seq}   → one Event, seq zero-padded so lexicographic key
//	                   order equals append order
//
// All mutations for a given session id serialize through a per-session lock;
// operations on different sessions proceed in parallel.
package session

import (
	"errors"
	"time"

	"github.com/almosthuman-ai/voiceloop/pkg/signal"
	"github.com/almosthuman-ai/voiceloop/pkg/stt"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a session id is unknown.
	ErrNotFound = errors.New("session: not found")

	// ErrAlreadyExists is returned when creating a session id twice.
	ErrAlreadyExists = errors.New("session: already exists")
)

// Event types recorded by the voice loop.
const (
	EventSessionStarted = "session_started"
	EventAudioReceived  = "audio_received"
	EventSTTCompleted   = "stt_completed"
	EventTurnCompleted  = "turn_completed"
)

// Turn is one user-input/agent-response exchange. Immutable once appended.
type Turn struct {
	Timestamp     time.Time       `json:"timestamp" msgpack:"timestamp"`
	UserText      string          `json:"user_text" msgpack:"user_text"`
	Utterances    []stt.Utterance `json:"utterances" msgpack:"utterances"`
	Signals       signal.Bundle   `json:"signals" msgpack:"signals"`
	AgentText     string          `json:"agent_text" msgpack:"agent_text"`
	AudioMIMEType string          `json:"audio_mime_type" msgpack:"audio_mime_type"`
	AudioProvider string          `json:"audio_provider" msgpack:"audio_provider"`
}

// Session is a named ordered sequence of turns.
type Session struct {
	ID        string    `json:"session_id" msgpack:"session_id"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
	Turns     []Turn    `json:"turns" msgpack:"turns"`
}

// Event is one write-once audit record in a session's event stream.
type Event struct {
	Timestamp time.Time      `json:"timestamp" msgpack:"timestamp"`
	SessionID string         `json:"session_id" msgpack:"session_id"`
	Type      string         `json:"event_type" msgpack:"event_type"`
	Payload   map[string]any `json:"payload" msgpack:"payload"`
}
