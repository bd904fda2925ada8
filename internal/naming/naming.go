// Package naming derives short descriptive filenames for generated code.
package naming

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"codegend/internal/llm"
)

const (
	// FallbackName is used when neither the model nor the prompt yields a name.
	FallbackName = "generated_code"

	rawLimit       = 50
	maxNameLen     = 30
	minNameLen     = 2
	slugSourceLen  = 20
	defaultTimeout = 20 * time.Second
)

// Streamer opens a token stream; *llm.Client satisfies it.
type Streamer interface {
	Stream(ctx context.Context, req llm.Request, sig llm.Signal) (*llm.TokenStream, error)
}

// Config wires a Synthesizer.
type Config struct {
	Backend Streamer
	// Model returns the model to ask; it is read on every call.
	Model   func() string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Synthesizer asks the backend for a filename and sanitizes the answer.
type Synthesizer struct {
	backend Streamer
	model   func() string
	timeout time.Duration
	log     zerolog.Logger
}

func New(cfg Config) *Synthesizer {
	s := &Synthesizer{backend: cfg.Backend, model: cfg.Model, timeout: cfg.Timeout, log: cfg.Logger}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.model == nil {
		s.model = func() string { return "" }
	}
	return s
}

func instruction(prompt, language string) string {
	return fmt.Sprintf(`Generate a short, descriptive filename (max 3 words) for code that does this: %s

Language: %s

Rules:
- Use only lowercase letters, numbers, and underscores
- Maximum 3 words
- Be descriptive but concise
- No file extension (just the name)

Filename:`, prompt, language)
}

// Synthesize returns a filename stem (no extension) for prompt. It never
// fails and never returns an empty string.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt, language string) string {
	raw, err := s.ask(ctx, prompt, language)
	if err != nil {
		s.log.Debug().Err(err).Msg("filename synthesis fell back to prompt slug")
		return Slug(prompt)
	}
	if name := Sanitize(raw); name != "" {
		return name
	}
	return Slug(prompt)
}

// ask streams the model's answer until a newline appears or rawLimit
// characters have arrived, then stops consuming.
func (s *Synthesizer) ask(ctx context.Context, prompt, language string) (string, error) {
	if s.backend == nil {
		return "", fmt.Errorf("no backend configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stream, err := s.backend.Stream(ctx, llm.Request{Model: s.model(), Prompt: instruction(prompt, language)}, nil)
	if err != nil {
		return "", err
	}
	defer stream.Close()
	var b strings.Builder
	for b.Len() <= rawLimit {
		tok, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		b.WriteString(tok)
		if strings.Contains(b.String(), "\n") {
			break
		}
	}
	return b.String(), nil
}

// Sanitize turns a raw model answer into a filename stem: the first non-empty
// line, lowercased, spaces to underscores, only [a-z0-9_], at most 30 chars.
// It returns "" when fewer than 2 characters survive.
func Sanitize(raw string) string {
	line := ""
	for _, l := range strings.Split(raw, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}
	line = strings.ToLower(strings.TrimSpace(line))
	line = strings.ReplaceAll(line, " ", "_")
	var b strings.Builder
	for _, r := range line {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if len(name) < minNameLen {
		return ""
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}

// Slug derives a deterministic name from the first characters of the prompt.
func Slug(prompt string) string {
	src := []rune(strings.TrimSpace(prompt))
	if len(src) > slugSourceLen {
		src = src[:slugSourceLen]
	}
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(string(src)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() < minNameLen {
		return FallbackName
	}
	return b.String()
}
