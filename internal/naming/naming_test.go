package naming

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"codegend/internal/llm"
	"codegend/internal/llm/llmtest"
)

func newSynth(t *testing.T, sc llmtest.Script) (*Synthesizer, *llmtest.Server) {
	t.Helper()
	srv := llmtest.New(t)
	srv.Always(sc)
	s := New(Config{
		Backend: llm.NewClient(llm.Config{Host: srv.URL}),
		Model:   func() string { return "m" },
		Timeout: 2 * time.Second,
	})
	return s, srv
}

func TestSynthesizeSanitizesModelAnswer(t *testing.T) {
	s, srv := newSynth(t, llmtest.Script{Tokens: []string{" Fibonacci", " Calculator", "!\n", "ignored"}})
	got := s.Synthesize(context.Background(), "write a fibonacci function", "python")
	if got != "fibonacci_calculator" {
		t.Fatalf("got %q", got)
	}
	reqs := srv.Requests()
	if len(reqs) != 1 || !strings.Contains(reqs[0].Prompt, "Language: python") || reqs[0].Model != "m" {
		t.Fatalf("unexpected backend request: %+v", reqs)
	}
}

func TestSynthesizeStopsAtRawLimit(t *testing.T) {
	long := strings.Repeat("abcdefghij", 4)
	hold := make(chan struct{})
	t.Cleanup(func() { close(hold) })
	// The backend would block forever after 6 tokens; stopping at the cap
	// means we never wait for it.
	s, _ := newSynth(t, llmtest.Script{
		Tokens:    []string{long, long, long, long, long, long, "never"},
		HoldAfter: 6,
		Hold:      hold,
	})
	start := time.Now()
	got := s.Synthesize(context.Background(), "p", "go")
	if len(got) != 30 {
		t.Fatalf("expected 30-char cap, got %q (%d)", got, len(got))
	}
	if time.Since(start) > time.Second {
		t.Fatalf("did not stop consuming at the cap")
	}
}

func TestSynthesizeFallsBackOnBackendError(t *testing.T) {
	s, _ := newSynth(t, llmtest.Script{Status: http.StatusInternalServerError})
	if got := s.Synthesize(context.Background(), "Build a REST API in Go!", "go"); got != "build_a_rest_api_in" {
		t.Fatalf("got %q", got)
	}
}

func TestSynthesizeFallsBackOnShortAnswer(t *testing.T) {
	s, _ := newSynth(t, llmtest.Script{Tokens: []string{"!!", "x"}})
	if got := s.Synthesize(context.Background(), "sort numbers", "python"); got != "sort_numbers" {
		t.Fatalf("got %q", got)
	}
}

func TestSynthesizeSymbolsOnlyNeverEmpty(t *testing.T) {
	s, _ := newSynth(t, llmtest.Script{Tokens: []string{"***"}})
	if got := s.Synthesize(context.Background(), "!@#$%^&*()", "text"); got != FallbackName {
		t.Fatalf("got %q", got)
	}
}

func TestSynthesizeWithoutBackend(t *testing.T) {
	s := New(Config{})
	if got := s.Synthesize(context.Background(), "hello world", "text"); got != "hello_world" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"  Quick Sort  ":                         "quick_sort",
		"binary-search.py":                       "binarysearchpy",
		"\n\nmerge sort\nextra":                  "merge_sort",
		"a":                                      "",
		"":                                       "",
		"this is a very long filename indeed ok": "this_is_a_very_long_filename_i",
		"Ünïcode name":                           "ncode_name",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Fatalf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Write a fibonacci function": "write_a_fibonacci_fu",
		"  --hello--world--  ":       "hello_world",
		"?!":                         FallbackName,
		"":                           FallbackName,
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}
