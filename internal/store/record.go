package store

import (
	"path/filepath"
	"strings"

	"codegend/pkg/types"
)

const titleMax = 60

// Title is the display name used by the history list: the filename stem when
// one was synthesized, otherwise the first meaningful line of the output (or
// of the prompt while nothing was produced).
func (r Record) Title() string {
	if r.Filename != "" && r.Filename != defaultFilename {
		return strings.TrimSuffix(r.Filename, filepath.Ext(r.Filename))
	}
	if strings.TrimSpace(r.Output) != "" {
		return titleFromContent(r.Output)
	}
	return titleFromContent(r.Prompt)
}

func titleFromContent(content string) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return truncate(line, titleMax)
		}
	}
	if lines[0] == "" {
		return "Untitled"
	}
	return truncate(lines[0], titleMax)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimRight(string(r[:n]), " \t") + "..."
}

// API converts the record into its wire form.
func (r Record) API() types.Generation {
	return types.Generation{
		ID:        r.ID,
		Prompt:    r.Prompt,
		Model:     r.Model,
		Status:    r.Status,
		Language:  r.Language,
		Filename:  r.Filename,
		Output:    r.Output,
		Error:     r.Error,
		Title:     r.Title(),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
