package types

// Stream message type tags sent over the generation WebSocket.
const (
	MsgStatus   = "status"
	MsgToken    = "token"
	MsgProgress = "progress"
	MsgDone     = "done"
	MsgError    = "error"
)

// Message is one frame of a generation session. Exactly one of DoneMessage,
// ErrorMessage or a close after StatusMessage{stopped} ends a session.
type Message interface {
	MessageType() string
}

type StatusMessage struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type TokenMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type ProgressMessage struct {
	Type   string `json:"type"`
	Tokens int    `json:"tokens"`
}

type DoneMessage struct {
	Type       string `json:"type"`
	Language   string `json:"language"`
	Filename   string `json:"filename"`
	TokenCount int    `json:"token_count"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (StatusMessage) MessageType() string   { return MsgStatus }
func (TokenMessage) MessageType() string    { return MsgToken }
func (ProgressMessage) MessageType() string { return MsgProgress }
func (DoneMessage) MessageType() string     { return MsgDone }
func (ErrorMessage) MessageType() string    { return MsgError }

func NewStatus(status string) StatusMessage { return StatusMessage{Type: MsgStatus, Status: status} }
func NewToken(data string) TokenMessage     { return TokenMessage{Type: MsgToken, Data: data} }
func NewProgress(n int) ProgressMessage     { return ProgressMessage{Type: MsgProgress, Tokens: n} }
func NewError(msg string) ErrorMessage      { return ErrorMessage{Type: MsgError, Message: msg} }

func NewDone(language, filename string, tokens int) DoneMessage {
	return DoneMessage{Type: MsgDone, Language: language, Filename: filename, TokenCount: tokens}
}

// StreamFrame is a decoded frame used by clients and tests. Fields not
// relevant to Type are zero.
type StreamFrame struct {
	Type       string `json:"type"`
	Status     string `json:"status,omitempty"`
	Data       string `json:"data,omitempty"`
	Tokens     int    `json:"tokens,omitempty"`
	Language   string `json:"language,omitempty"`
	Filename   string `json:"filename,omitempty"`
	TokenCount int    `json:"token_count,omitempty"`
	Message    string `json:"message,omitempty"`
}
