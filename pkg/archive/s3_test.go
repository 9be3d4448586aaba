package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// apiError implements smithy.APIError for test assertions.
type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                  { return e.msg }
func (e *apiError) ErrorCode() string              { return e.code }
func (e *apiError) ErrorMessage() string           { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault  { return smithy.FaultClient }

var errNoSuchKey = &apiError{code: "NoSuchKey", msg: "no such key"}
var errHeadNotFound = &apiError{code: "NotFound", msg: "not found"}

type mockObject struct {
	data        []byte
	contentType string
}

// mockS3 is a thread-safe in-memory S3 backend for testing.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string]mockObject

	getErr error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string]mockObject)}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	ct := obj.contentType
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: &ct,
	}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	obj := mockObject{data: data}
	if in.ContentType != nil {
		obj.contentType = *in.ContentType
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = obj
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, errHeadNotFound
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3PutGet(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "bucket", "")
	ctx := context.Background()

	key := InputKey("s1", "t1", "webm")
	if err := store.Put(ctx, key, "audio/webm", []byte("audio-bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	obj, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(obj.Data) != "audio-bytes" || obj.ContentType != "audio/webm" {
		t.Fatalf("got %q %q", obj.Data, obj.ContentType)
	}
}

func TestS3Prefix(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "bucket", "voiceloop")
	ctx := context.Background()

	if err := store.Put(ctx, "sessions/s1/001/input.wav", "audio/wav", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, ok := mock.objects["voiceloop/sessions/s1/001/input.wav"]; !ok {
		t.Fatalf("object stored under wrong key: %v", keys(mock))
	}
}

func TestS3GetMissing(t *testing.T) {
	store := NewS3(newMockS3(), "bucket", "")
	_, err := store.Get(context.Background(), "sessions/x/001/input.wav")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3ExistsAndDelete(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "bucket", "")
	ctx := context.Background()
	key := ReplyKey("s1", "t1", "mp3")

	if ok, _ := store.Exists(ctx, key); ok {
		t.Fatal("Exists before Put")
	}
	if err := store.Put(ctx, key, "audio/mpeg", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.Exists(ctx, key); !ok {
		t.Fatal("Exists after Put = false")
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := store.Exists(ctx, key); ok {
		t.Fatal("Exists after Delete = true")
	}
}

func TestS3NonNotFoundErrorPropagates(t *testing.T) {
	mock := newMockS3()
	mock.getErr = &apiError{code: "AccessDenied", msg: "denied"}
	store := NewS3(mock, "bucket", "")
	_, err := store.Get(context.Background(), "k")
	if errors.Is(err, ErrNotFound) {
		t.Fatal("access error mapped to ErrNotFound")
	}
	if err == nil {
		t.Fatal("expected error")
	}
}

func keys(m *mockS3) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}
