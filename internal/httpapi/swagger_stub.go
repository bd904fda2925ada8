//go:build !swagger

package httpapi

import "github.com/go-chi/chi/v5"

// MountSwagger leaves /swagger unrouted in default builds; the UI is
// compiled in with -tags swagger.
func MountSwagger(chi.Router) {}
