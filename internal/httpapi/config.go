package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON and
// stop beacon bodies.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// wsWriteTimeout bounds a single WebSocket frame write when the caller's
// context carries no deadline.
var wsWriteTimeout = 10 * time.Second

// SetWSWriteTimeout sets the fallback frame write timeout (<=0 restores the default).
func SetWSWriteTimeout(d time.Duration) {
	if d <= 0 {
		d = 10 * time.Second
	}
	wsWriteTimeout = d
}

// frontendDir is served at / and /frontend/* when non-empty.
var frontendDir string

// SetFrontendDir configures the static frontend directory ("" disables it).
func SetFrontendDir(dir string) { frontendDir = dir }

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
