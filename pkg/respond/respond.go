// Package respond generates the assistant reply for a voice turn. A
// Generator takes the user's transcript plus conversation context and
// returns the text to speak, optionally with tool commands for the
// caller to execute. Implementations cover a hosted pipeline endpoint,
// the Gemini and OpenAI SDKs, and a deterministic stub.
package respond

import (
	"context"
	"errors"
	"fmt"

	"github.com/almosthuman-ai/voiceloop/pkg/signal"
)

// Message is one prior conversation entry, role "user" or "assistant".
type Message struct {
	Role    string `json:"role" msgpack:"role"`
	Content string `json:"content" msgpack:"content"`
}

// Request carries everything a Generator may use to produce a reply.
type Request struct {
	SessionID string
	UserText  string
	History   []Message
	Signals   *signal.Bundle

	// SystemPrompt overrides the generator's default persona when set.
	SystemPrompt string
}

// ToolCommand is an opaque instruction emitted alongside the reply.
type ToolCommand struct {
	Name      string         `json:"name" msgpack:"name"`
	Arguments map[string]any `json:"arguments,omitempty" msgpack:"arguments,omitempty"`
}

// Response is the generated assistant turn.
type Response struct {
	Text         string        `json:"text" msgpack:"text"`
	ToolCommands []ToolCommand `json:"tool_commands,omitempty" msgpack:"tool_commands,omitempty"`

	// Provider identifies which generator produced the text.
	Provider string `json:"provider,omitempty" msgpack:"provider,omitempty"`
}

// Generator produces an assistant reply for a turn.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// GenerateFunc adapts a function to the Generator interface.
type GenerateFunc func(ctx context.Context, req *Request) (*Response, error)

func (f GenerateFunc) Generate(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// StubProvider is the provider id of the deterministic stub generator.
const StubProvider = "stub"

// Stub returns the same canned scheduling reply for every request. It
// keeps demos and tests deterministic when no real model is configured.
type Stub struct{}

func (Stub) Generate(_ context.Context, _ *Request) (*Response, error) {
	return &Response{
		Text:     "Thanks for calling. I can help you schedule an appointment. What date and time work best for you?",
		Provider: StubProvider,
	}, nil
}

// Error describes a failed generation attempt.
type Error struct {
	Provider   string
	HTTPStatus int
	Message    string
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("respond: %s: status %d: %s", e.Provider, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("respond: %s: %s", e.Provider, e.Message)
}

// AsError reports whether err wraps a generation *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
