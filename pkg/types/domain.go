package types

import "time"

// GenerationStatus is the persisted lifecycle state of a generation record.
type GenerationStatus string

const (
	StatusProcessing GenerationStatus = "processing"
	StatusCompleted  GenerationStatus = "completed"
	StatusStopped    GenerationStatus = "stopped"
	StatusFailed     GenerationStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s GenerationStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusStopped, StatusFailed:
		return true
	}
	return false
}

// Generation is a persisted code generation as returned by the history API.
type Generation struct {
	// Opaque unique identifier.
	// example: 01HZX3K6W5B1F8QJ9Y2M4N7P0R
	ID string `json:"id" example:"01HZX3K6W5B1F8QJ9Y2M4N7P0R"`
	// The user's request.
	// example: write a fibonacci function in python
	Prompt string `json:"prompt" example:"write a fibonacci function in python"`
	// Model the generation was (or will be) produced with.
	// example: qwen2.5:14b
	Model string `json:"model" example:"qwen2.5:14b"`
	// One of processing, completed, stopped, failed.
	// example: completed
	Status GenerationStatus `json:"status" example:"completed"`
	// Detected language of the output.
	// example: python
	Language string `json:"language" example:"python"`
	// Suggested filename including extension.
	// example: fibonacci_function.py
	Filename string `json:"filename" example:"fibonacci_function.py"`
	// Accumulated output text.
	Output string `json:"output"`
	// Error text for failed generations.
	Error string `json:"error,omitempty"`
	// Display title derived from the filename or content.
	// example: fibonacci_function
	Title     string    `json:"title,omitempty" example:"fibonacci_function"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Model is an installed backend model as reported by GET /models.
type Model struct {
	// Model name as understood by the backend.
	// example: qwen2.5:14b
	Name string `json:"name" example:"qwen2.5:14b"`
	// Size on disk in bytes.
	// example: 9001752960
	Size int64 `json:"size" example:"9001752960"`
	// Last modification time reported by the backend.
	// example: 2024-09-20T10:00:00Z
	ModifiedAt string `json:"modified_at" example:"2024-09-20T10:00:00Z"`
}
