package kv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/almosthuman-ai/voiceloop/pkg/kv"
)

func newBadgerStore(t *testing.T) kv.Store {
	t.Helper()
	s, err := kv.NewBadger(kv.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerRequiresDir(t *testing.T) {
	if _, err := kv.NewBadger(kv.BadgerOptions{}); err == nil {
		t.Fatal("expected error for on-disk mode without Dir")
	}
}

func TestBadgerGetSetList(t *testing.T) {
	ctx := context.Background()
	s := newBadgerStore(t)

	if _, err := s.Get(ctx, kv.Key{"missing"}); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	keys := []kv.Key{
		{"evt", "s1", "000000000001"},
		{"evt", "s1", "000000000000"},
		{"evt", "s2", "000000000000"},
	}
	for i, k := range keys {
		if err := s.Set(ctx, k, []byte{byte('0' + i)}); err != nil {
			t.Fatalf("Set %v: %v", k, err)
		}
	}

	var got []string
	for e, err := range s.List(ctx, kv.Key{"evt", "s1"}) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got = append(got, e.Key.String())
	}
	if len(got) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(got))
	}
	if got[0] != "evt:s1:000000000000" || got[1] != "evt:s1:000000000001" {
		t.Fatalf("List order = %v", got)
	}
}

func TestBadgerPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	key := kv.Key{"sess", "persist-me"}
	if err := s.Set(ctx, key, []byte("payload")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("Get = %q, want %q", got, "payload")
	}
}
