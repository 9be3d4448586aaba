package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/almosthuman-ai/voiceloop/pkg/kv"
)

// Store persists sessions and events in a kv.Store.
type Store struct {
	kv kv.Store

	mu sync.Mutex
	// locks holds one entry per session id ever touched by this process
	// and is never shrunk. A sessionState is a few dozen bytes, so this
	// stays negligible until session counts reach the millions.
	// TODO: evict entries with no in-flight operation if long-lived
	// servers ever reach that volume.
	locks map[string]*sessionState
}

// sessionState is the per-session mutation domain: a lock serializing all
// writes for one id, and the next event sequence number (-1 until loaded).
type sessionState struct {
	sync.Mutex
	nextSeq int64
}

// NewStore creates a session store on top of the given kv backend.
func NewStore(backend kv.Store) *Store {
	return &Store{
		kv:    backend,
		locks: make(map[string]*sessionState),
	}
}

// state returns the mutation domain for a session id, creating it on first
// use.
func (s *Store) state(id string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.locks[id]
	if !ok {
		st = &sessionState{nextSeq: -1}
		s.locks[id] = st
	}
	return st
}

func sessionKey(id string) kv.Key { return kv.Key{"sess", id} }
func eventKey(id string, seq int64) kv.Key {
	return kv.Key{"evt", id, fmt.Sprintf("%012d", seq)}
}
func eventPrefix(id string) kv.Key { return kv.Key{"evt", id} }

// Create initializes a new empty session record. Creating the same id twice
// fails with ErrAlreadyExists; the store never silently overwrites history.
func (s *Store) Create(ctx context.Context, id string) (*Session, error) {
	st := s.state(id)
	st.Lock()
	defer st.Unlock()

	if _, err := s.kv.Get(ctx, sessionKey(id)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	} else if !errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("session: read %s: %w", id, err)
	}

	now := time.Now().UTC()
	rec := &Session{ID: id, CreatedAt: now, UpdatedAt: now, Turns: []Turn{}}
	if err := s.write(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns the session record for an id.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.kv.Get(ctx, sessionKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", id, err)
	}
	var rec Session
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", id, err)
	}
	return &rec, nil
}

// AppendTurn atomically appends a turn to the session's history and bumps
// the update timestamp. The whole read-modify-write runs under the session's
// lock, so concurrent appends to the same id serialize and never lose a
// previously appended turn.
func (s *Store) AppendTurn(ctx context.Context, id string, turn Turn) (*Session, error) {
	st := s.state(id)
	st.Lock()
	defer st.Unlock()

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Turns = append(rec.Turns, turn)
	rec.UpdatedAt = time.Now().UTC()
	if err := s.write(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// AppendEvent appends one event to the session's audit stream. The event
// sequence number is assigned under the session's lock, so append order is
// total per session. Callers on the turn path treat a returned error as
// non-fatal and only log it.
func (s *Store) AppendEvent(ctx context.Context, id, eventType string, payload map[string]any) error {
	st := s.state(id)
	st.Lock()
	defer st.Unlock()

	if st.nextSeq < 0 {
		seq, err := s.countEvents(ctx, id)
		if err != nil {
			return fmt.Errorf("session: load event seq for %s: %w", id, err)
		}
		st.nextSeq = seq
	}

	evt := Event{
		Timestamp: time.Now().UTC(),
		SessionID: id,
		Type:      eventType,
		Payload:   payload,
	}
	data, err := msgpack.Marshal(&evt)
	if err != nil {
		return fmt.Errorf("session: encode event: %w", err)
	}
	if err := s.kv.Set(ctx, eventKey(id, st.nextSeq), data); err != nil {
		return fmt.Errorf("session: write event for %s: %w", id, err)
	}
	st.nextSeq++
	return nil
}

// Events returns the session's event stream in append order. A session with
// no events yields an empty slice; an unknown session id is ErrNotFound.
func (s *Store) Events(ctx context.Context, id string) ([]Event, error) {
	if _, err := s.kv.Get(ctx, sessionKey(id)); errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", id, err)
	}

	events := []Event{}
	for entry, err := range s.kv.List(ctx, eventPrefix(id)) {
		if err != nil {
			return nil, fmt.Errorf("session: list events for %s: %w", id, err)
		}
		var evt Event
		if err := msgpack.Unmarshal(entry.Value, &evt); err != nil {
			return nil, fmt.Errorf("session: decode event %s: %w", entry.Key, err)
		}
		events = append(events, evt)
	}
	return events, nil
}

// Summary is a session listing entry.
type Summary struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TurnCount int       `json:"turn_count"`
}

// List returns a summary of every stored session, ordered by id.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	out := []Summary{}
	for entry, err := range s.kv.List(ctx, kv.Key{"sess"}) {
		if err != nil {
			return nil, fmt.Errorf("session: list: %w", err)
		}
		var rec Session
		if err := msgpack.Unmarshal(entry.Value, &rec); err != nil {
			return nil, fmt.Errorf("session: decode %s: %w", entry.Key, err)
		}
		out = append(out, Summary{
			ID:        rec.ID,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
			TurnCount: len(rec.Turns),
		})
	}
	return out, nil
}

// countEvents scans the stream to recover the next sequence number after a
// restart.
func (s *Store) countEvents(ctx context.Context, id string) (int64, error) {
	var n int64
	for _, err := range s.kv.List(ctx, eventPrefix(id)) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func (s *Store) write(ctx context.Context, rec *Session) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", rec.ID, err)
	}
	if err := s.kv.Set(ctx, sessionKey(rec.ID), data); err != nil {
		return fmt.Errorf("session: write %s: %w", rec.ID, err)
	}
	return nil
}
