package loop

import (
	"context"
	"encoding/base64"
	"errors"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/almosthuman-ai/voiceloop/pkg/archive"
	"github.com/almosthuman-ai/voiceloop/pkg/kv"
	"github.com/almosthuman-ai/voiceloop/pkg/respond"
	"github.com/almosthuman-ai/voiceloop/pkg/session"
	"github.com/almosthuman-ai/voiceloop/pkg/stt"
	"github.com/almosthuman-ai/voiceloop/pkg/tts"
)

func newTestLoop(t *testing.T, opts ...Option) (*Loop, *session.Store) {
	t.Helper()
	store := session.NewStore(kv.NewMemory())
	l := New(store,
		stt.NewClient("", "", stt.WithMock("")),
		respond.Stub{},
		tts.Tone{},
		opts...)
	return l, store
}

func eventTypes(t *testing.T, store *session.Store, id string) []string {
	t.Helper()
	events, err := store.Events(context.Background(), id)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func TestStartSession(t *testing.T) {
	l, store := newTestLoop(t)
	res, err := l.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if res.SessionID == "" || res.Status != "started" {
		t.Fatalf("result = %+v", res)
	}
	got := eventTypes(t, store, res.SessionID)
	if len(got) != 1 || got[0] != session.EventSessionStarted {
		t.Fatalf("events = %v", got)
	}
}

func TestProcessMintsSession(t *testing.T) {
	l, store := newTestLoop(t)
	ctx := context.Background()

	res, err := l.Process(ctx, []byte("audio"), "audio/webm", "")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.SessionID == "" {
		t.Fatal("no session id minted")
	}
	if res.OutputStatus != "audio_generated" {
		t.Fatalf("status = %q", res.OutputStatus)
	}
	if res.Transcript == nil || res.Transcript.Text == "" {
		t.Fatal("missing transcript")
	}
	if res.Response == nil || res.Response.Text == "" {
		t.Fatal("missing llm response")
	}
	audio, err := base64.StdEncoding.DecodeString(res.TTSAudioB64)
	if err != nil || len(audio) == 0 {
		t.Fatalf("tts audio invalid: err=%v len=%d", err, len(audio))
	}
	if res.TTSProvider != tts.ToneProvider || res.TTSMIMEType != "audio/wav" {
		t.Fatalf("tts = %s %s", res.TTSProvider, res.TTSMIMEType)
	}

	rec, err := store.Get(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(rec.Turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(rec.Turns))
	}
	turn := rec.Turns[0]
	if turn.UserText != res.Transcript.Text || turn.AgentText != res.Response.Text {
		t.Fatalf("turn = %+v", turn)
	}

	want := []string{session.EventAudioReceived, session.EventSTTCompleted, session.EventTurnCompleted}
	got := eventTypes(t, store, res.SessionID)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestProcessExplicitSession(t *testing.T) {
	l, store := newTestLoop(t)
	ctx := context.Background()

	start, err := l.StartSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	res, err := l.Process(ctx, []byte("audio"), "audio/wav", start.SessionID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.SessionID != start.SessionID {
		t.Fatalf("session id = %q, want %q", res.SessionID, start.SessionID)
	}
	rec, _ := store.Get(ctx, start.SessionID)
	if len(rec.Turns) != 1 {
		t.Fatalf("turns = %d", len(rec.Turns))
	}
}

func TestProcessUnknownSessionFailsFast(t *testing.T) {
	store := session.NewStore(kv.NewMemory())
	var transcriberCalled bool
	l := New(store,
		stt.TranscribeFunc(func(context.Context, []byte, string, string) (*stt.Transcript, error) {
			transcriberCalled = true
			return nil, errors.New("should not be reached")
		}),
		respond.Stub{}, tts.Tone{})

	_, err := l.Process(context.Background(), []byte("audio"), "audio/wav", "no-such-session")
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if transcriberCalled {
		t.Fatal("transcriber called for unknown session")
	}
	// the failed request must leave no record behind
	if _, err := store.Events(context.Background(), "no-such-session"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("events exist for unknown session: %v", err)
	}
}

func TestProcessEmptyAudio(t *testing.T) {
	l, _ := newTestLoop(t)
	_, err := l.Process(context.Background(), nil, "audio/wav", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTranscribeFailureAbortsTurn(t *testing.T) {
	store := session.NewStore(kv.NewMemory())
	l := New(store,
		stt.TranscribeFunc(func(context.Context, []byte, string, string) (*stt.Transcript, error) {
			return nil, errors.New("provider down")
		}),
		respond.Stub{}, tts.Tone{})

	res, err := l.Process(context.Background(), []byte("audio"), "audio/wav", "")
	if res != nil {
		t.Fatal("result returned despite failure")
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "transcribe" {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateFailureAbortsTurn(t *testing.T) {
	store := session.NewStore(kv.NewMemory())
	l := New(store,
		stt.NewClient("", "", stt.WithMock("")),
		respond.GenerateFunc(func(context.Context, *respond.Request) (*respond.Response, error) {
			return nil, errors.New("model offline")
		}),
		tts.Tone{})

	start, _ := l.StartSession(context.Background())
	_, err := l.Process(context.Background(), []byte("audio"), "audio/wav", start.SessionID)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "generate" {
		t.Fatalf("err = %v", err)
	}
	// no partial turn
	rec, _ := store.Get(context.Background(), start.SessionID)
	if len(rec.Turns) != 0 {
		t.Fatalf("turns = %d, want 0", len(rec.Turns))
	}
}

func TestSynthesizeFailureAbortsTurn(t *testing.T) {
	store := session.NewStore(kv.NewMemory())
	l := New(store,
		stt.NewClient("", "", stt.WithMock("")),
		respond.Stub{},
		tts.SynthesizeFunc(func(context.Context, string, string) (*tts.Result, error) {
			return nil, errors.New("no audio")
		}))

	_, err := l.Process(context.Background(), []byte("audio"), "audio/wav", "")
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "synthesize" {
		t.Fatalf("err = %v", err)
	}
}

func TestHistoryReachesGenerator(t *testing.T) {
	store := session.NewStore(kv.NewMemory())
	var lastHistory []respond.Message
	l := New(store,
		stt.NewClient("", "", stt.WithMock("second turn text")),
		respond.GenerateFunc(func(_ context.Context, req *respond.Request) (*respond.Response, error) {
			lastHistory = req.History
			return &respond.Response{Text: "reply", Provider: "fake"}, nil
		}),
		tts.Tone{})
	ctx := context.Background()

	first, err := l.Process(ctx, []byte("a"), "audio/wav", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(lastHistory) != 0 {
		t.Fatalf("first turn history = %v", lastHistory)
	}
	if _, err := l.Process(ctx, []byte("b"), "audio/wav", first.SessionID); err != nil {
		t.Fatal(err)
	}
	if len(lastHistory) != 2 {
		t.Fatalf("second turn history = %v", lastHistory)
	}
	if lastHistory[0].Role != "user" || lastHistory[1].Role != "assistant" || lastHistory[1].Content != "reply" {
		t.Fatalf("history = %v", lastHistory)
	}
}

// memArchive records every Put so tests can inspect the keys the loop
// chose; turn ids are minted inside Process and not predictable.
type memArchive struct {
	mu      sync.Mutex
	objects map[string]*archive.Object
	keys    []string
}

func newMemArchive() *memArchive {
	return &memArchive{objects: map[string]*archive.Object{}}
}

func (m *memArchive) Put(_ context.Context, key, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = &archive.Object{Data: data, ContentType: contentType}
	m.keys = append(m.keys, key)
	return nil
}

func (m *memArchive) Get(_ context.Context, key string) (*archive.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, archive.ErrNotFound
	}
	return obj, nil
}

func (m *memArchive) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memArchive) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func TestArchiveStoresTurnAudio(t *testing.T) {
	blobs := newMemArchive()
	l, _ := newTestLoop(t, WithArchive(blobs))
	ctx := context.Background()

	res, err := l.Process(ctx, []byte("caller-audio"), "audio/webm", "")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(blobs.keys) != 2 {
		t.Fatalf("archived %d objects, want 2: %v", len(blobs.keys), blobs.keys)
	}
	inKey, replyKey := blobs.keys[0], blobs.keys[1]
	prefix := "sessions/" + res.SessionID + "/"
	if !strings.HasPrefix(inKey, prefix) || !strings.HasSuffix(inKey, "/input.webm") {
		t.Fatalf("input key = %q", inKey)
	}
	if !strings.HasPrefix(replyKey, prefix) || !strings.HasSuffix(replyKey, "/reply.wav") {
		t.Fatalf("reply key = %q", replyKey)
	}
	// Input and reply of one turn share the turn directory.
	if path.Dir(inKey) != path.Dir(replyKey) {
		t.Fatalf("turn dirs differ: %q vs %q", inKey, replyKey)
	}

	in, err := blobs.Get(ctx, inKey)
	if err != nil {
		t.Fatalf("input not archived: %v", err)
	}
	if string(in.Data) != "caller-audio" {
		t.Fatalf("archived input = %q", in.Data)
	}
	reply, err := blobs.Get(ctx, replyKey)
	if err != nil {
		t.Fatalf("reply not archived: %v", err)
	}
	if len(reply.Data) == 0 {
		t.Fatal("archived reply empty")
	}
}

func TestConcurrentTurnsArchiveDistinctKeys(t *testing.T) {
	blobs := newMemArchive()
	l, store := newTestLoop(t, WithArchive(blobs))
	ctx := context.Background()

	start, err := l.StartSession(ctx)
	if err != nil {
		t.Fatal(err)
	}

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-release
			if _, err := l.Process(ctx, []byte("audio"), "audio/webm", start.SessionID); err != nil {
				t.Errorf("Process: %v", err)
			}
		}()
	}
	close(release)
	wg.Wait()

	rec, err := store.Get(ctx, start.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Turns) != 2 {
		t.Fatalf("persisted %d turns, want 2", len(rec.Turns))
	}
	// Every persisted turn keeps its own archived audio: four objects,
	// no key reused between the two racing turns.
	seen := map[string]bool{}
	for _, key := range blobs.keys {
		if seen[key] {
			t.Fatalf("archive key reused: %q", key)
		}
		seen[key] = true
	}
	if len(blobs.objects) != 4 {
		t.Fatalf("archived %d objects, want 4: %v", len(blobs.objects), blobs.keys)
	}
}

type failingArchive struct{}

func (failingArchive) Put(context.Context, string, string, []byte) error {
	return errors.New("disk full")
}
func (failingArchive) Get(context.Context, string) (*archive.Object, error) {
	return nil, archive.ErrNotFound
}
func (failingArchive) Exists(context.Context, string) (bool, error) { return false, nil }
func (failingArchive) Delete(context.Context, string) error         { return nil }

func TestArchiveFailureDoesNotFailTurn(t *testing.T) {
	l, _ := newTestLoop(t, WithArchive(failingArchive{}))
	res, err := l.Process(context.Background(), []byte("audio"), "audio/wav", "")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.OutputStatus != "audio_generated" {
		t.Fatalf("status = %q", res.OutputStatus)
	}
}

func TestGetSession(t *testing.T) {
	l, _ := newTestLoop(t)
	ctx := context.Background()

	res, err := l.Process(ctx, []byte("audio"), "audio/wav", "")
	if err != nil {
		t.Fatal(err)
	}
	view, err := l.GetSession(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if view.Session.ID != res.SessionID || len(view.Session.Turns) != 1 {
		t.Fatalf("session = %+v", view.Session)
	}
	if len(view.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(view.Events))
	}

	if _, err := l.GetSession(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
