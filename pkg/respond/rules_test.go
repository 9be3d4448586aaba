package respond

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestRulesDefaultsWhenMissing(t *testing.T) {
	r := NewRules(filepath.Join(t.TempDir(), "rules.json"))
	got := r.Load()
	if !reflect.DeepEqual(got, DefaultRules) {
		t.Fatalf("Load() = %v, want defaults", got)
	}
	// mutating the returned slice must not poison the defaults
	got[0] = "changed"
	if DefaultRules[0] == "changed" {
		t.Fatal("Load leaked the defaults slice")
	}
}

func TestRulesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "rules.json")
	r := NewRules(path)
	want := []string{"rule one", "rule two"}
	if err := r.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := r.Load(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Load() = %v, want %v", got, want)
	}
}

func TestRulesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte("{nonsense"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := NewRules(path).Load(); len(got) != 0 {
		t.Fatalf("Load() = %v, want empty", got)
	}
}

func TestRulesBulleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	r := NewRules(path)
	if err := r.Save([]string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if got := r.Bulleted(); got != "- a\n- b" {
		t.Fatalf("Bulleted() = %q", got)
	}
}
