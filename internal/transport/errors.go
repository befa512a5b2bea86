package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ledger/internal/notify"
)

// Kind classifies a failed call.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized" // 401
	KindForbidden    Kind = "forbidden"    // 403
	KindRequest      Kind = "request"      // any other non-2xx status
	KindNetwork      Kind = "network"      // no response: refused, reset, timeout
	KindCanceled     Kind = "canceled"     // the caller gave up; nobody is notified
)

// Sentinels matched by (*Error).Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRequest      = errors.New("request rejected")
	ErrNetwork      = errors.New("network failure")
	ErrCanceled     = errors.New("request canceled")
)

// Error is returned for every failed call. The user has been notified of
// every kind except KindCanceled.
type Error struct {
	Kind       Kind
	StatusCode int
	Method     string
	Path       string
	// Message is the human readable text that was shown to the user.
	Message string
	// Detail is the raw "detail" member of the response body, if any.
	Detail json.RawMessage
	Err    error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrForbidden:
		return e.Kind == KindForbidden
	case ErrRequest:
		return e.Kind == KindRequest
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrCanceled:
		return e.Kind == KindCanceled
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	default:
		return KindRequest
	}
}

// notice builds what the user sees for e.
func (e *Error) notice() notify.Notice {
	n := notify.Notice{Level: notify.LevelError, Status: e.StatusCode, Message: e.Message}
	switch e.Kind {
	case KindUnauthorized:
		n.Kind = notify.KindSessionExpired
		n.Message = notify.MsgSessionExpired
	case KindForbidden:
		n.Kind = notify.KindPermissionDenied
		n.Message = notify.MsgPermissionDenied
	case KindNetwork:
		n.Kind = notify.KindNetwork
	default:
		n.Kind = notify.KindRequestFailed
	}
	return n
}

// detailMessage extracts the user facing message from an error body.
// A string detail is used verbatim, any other non-empty detail is rendered
// as compact JSON, and a missing or falsy detail yields the generic message.
func detailMessage(body []byte) (string, json.RawMessage) {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return notify.MsgRequestFailed, nil
	}
	raw := bytes.TrimSpace(payload.Detail)
	if len(raw) == 0 {
		return notify.MsgRequestFailed, nil
	}

	switch string(raw) {
	case "null", "false", "0", `""`:
		return notify.MsgRequestFailed, raw
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, raw
		}
		return notify.MsgRequestFailed, raw
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return notify.MsgRequestFailed, raw
	}
	return compact.String(), raw
}
