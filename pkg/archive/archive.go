// Package archive persists raw turn audio outside the session database.
// Session records stay small; anything that needs the original bytes
// later (replay, re-transcription, audits) pulls them from here by key.
//
// Keys are forward-slash separated and laid out per session. Each turn's
// objects live under an id minted for that turn, so two turns can never
// write to the same key even when they race on one session:
//
//	sessions/<session-id>/<turn-id>/input.<ext>
//	sessions/<session-id>/<turn-id>/reply.<ext>
//
// Backends cover local disk and S3-compatible object stores.
package archive

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested key has no object.
var ErrNotFound = errors.New("archive: object not found")

// Object is a stored audio blob with its media type.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is a write-once blob store for turn audio.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key, contentType string, data []byte) error

	// Get retrieves the object stored under key.
	// Returns an error wrapping ErrNotFound if no object exists.
	Get(ctx context.Context, key string) (*Object, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object under key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error
}

// InputKey is the archive key for the caller audio of one turn.
func InputKey(sessionID, turnID, ext string) string {
	return fmt.Sprintf("sessions/%s/%s/input.%s", sessionID, turnID, ext)
}

// ReplyKey is the archive key for the synthesized reply of one turn.
func ReplyKey(sessionID, turnID, ext string) string {
	return fmt.Sprintf("sessions/%s/%s/reply.%s", sessionID, turnID, ext)
}
