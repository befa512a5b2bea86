package transport

import (
	"github.com/google/uuid"
)

// HeaderRequestID is set on every outgoing request so client logs can be
// matched with backend logs.
const HeaderRequestID = "X-Request-ID"

// NewRequestID creates a unique request ID for tracing
func NewRequestID() string {
	return "req_" + uuid.NewString()
}
