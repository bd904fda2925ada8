package types

// GenerateRequest is the payload for POST /generate.
type GenerateRequest struct {
	// Required natural-language description of the code to generate.
	// example: write a fibonacci function in python
	Prompt string `json:"prompt" example:"write a fibonacci function in python"`
}

// GenerateResponse is returned by POST /generate.
type GenerateResponse struct {
	// Identifier to open the streaming session with.
	// example: 01HZX3K6W5B1F8QJ9Y2M4N7P0R
	ID string `json:"id" example:"01HZX3K6W5B1F8QJ9Y2M4N7P0R"`
}

// HistoryResponse wraps the list returned by GET /history.
type HistoryResponse struct {
	Generations []Generation `json:"generations"`
}

// StopRequest is the optional body of POST /stop/{id}. The same field is
// accepted as JSON, urlencoded or multipart form.
type StopRequest struct {
	// Partial output observed by the client at the time of stopping.
	Output string `json:"output"`
}

// FailRequest is the body of POST /history/{id}/fail.
type FailRequest struct {
	// Error text to record.
	// example: client lost connection
	Error string `json:"error" example:"client lost connection"`
	// Partial output observed by the client.
	Output string `json:"output"`
}

// StatusResponse is a generic {"status": "..."} acknowledgement.
type StatusResponse struct {
	// example: stopped
	Status string `json:"status" example:"stopped"`
	// Optional human-readable detail.
	Message string `json:"message,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of installed backend models.
	Models []Model `json:"models"`
	// Currently selected model.
	// example: qwen2.5:14b
	Current string `json:"current,omitempty" example:"qwen2.5:14b"`
	// Set when the backend could not be queried.
	Error string `json:"error,omitempty"`
}

// SetModelRequest is the payload for POST /models/set.
type SetModelRequest struct {
	// example: codellama:7b
	Model string `json:"model" example:"codellama:7b"`
}

// SetModelResponse acknowledges a model switch.
type SetModelResponse struct {
	// example: success
	Status string `json:"status" example:"success"`
	// example: codellama:7b
	Model string `json:"model" example:"codellama:7b"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// One of ok, degraded, busy.
	// example: ok
	Status string `json:"status" example:"ok"`
	// Backend reachability.
	// example: true
	Ollama bool `json:"ollama" example:"true"`
	// Persistence store reachability.
	// example: true
	Store bool `json:"store" example:"true"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
