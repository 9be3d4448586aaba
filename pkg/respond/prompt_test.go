package respond

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil); got != "No prior context." {
		t.Fatalf("Summarize(nil) = %q", got)
	}
}

func TestSummarizeWindow(t *testing.T) {
	var history []Message
	for i := 0; i < 20; i++ {
		history = append(history, Message{Role: "user", Content: fmt.Sprintf("message %d", i)})
	}
	got := Summarize(history)
	if strings.Contains(got, "message 7") {
		t.Fatal("summary includes messages outside the window")
	}
	if !strings.Contains(got, "message 8") || !strings.Contains(got, "message 19") {
		t.Fatalf("summary missing windowed messages:\n%s", got)
	}
}

func TestSummarizeTruncatesAndCollapses(t *testing.T) {
	long := strings.Repeat("word  \n", 100)
	got := Summarize([]Message{{Role: "assistant", Content: long}})
	line := strings.Split(got, "\n")[1]
	if !strings.HasSuffix(line, "...") {
		t.Fatalf("long content not truncated: %q", line)
	}
	if strings.Contains(line, "  ") || strings.Contains(line, "\t") {
		t.Fatalf("whitespace not collapsed: %q", line)
	}
	if !strings.HasPrefix(line, "- Assistant: ") {
		t.Fatalf("unexpected line prefix: %q", line)
	}
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("SUMMARY-X", "- rule one", "book me tuesday")
	for _, want := range []string{"SUMMARY-X", "- rule one", "book me tuesday", "IMPROVEMENT RULES"} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
	if strings.HasPrefix(got, "\n") || strings.HasSuffix(got, "\n") {
		t.Fatal("prompt not trimmed")
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\nhello\n```":         "hello",
		"plain":                   "plain",
	}
	for in, want := range cases {
		if got := stripFences(in); got != want {
			t.Fatalf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStubDeterministic(t *testing.T) {
	a, err := Stub{}.Generate(context.Background(), &Request{UserText: "anything"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, _ := Stub{}.Generate(context.Background(), &Request{UserText: "else"})
	if a.Text != b.Text || a.Text == "" {
		t.Fatalf("stub not deterministic: %q vs %q", a.Text, b.Text)
	}
	if a.Provider != StubProvider {
		t.Fatalf("provider = %q", a.Provider)
	}
}
