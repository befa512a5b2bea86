// Package notify carries user-visible notices out of the transport layer.
//
// A Notice is what a browser client would show as a toast. Sinks decide
// where it goes: the log, the terminal, a message broker.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	applog "ledger/internal/log"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Kind classifies why a notice was raised.
type Kind string

const (
	KindSessionExpired   Kind = "session_expired"
	KindPermissionDenied Kind = "permission_denied"
	KindRequestFailed    Kind = "request_failed"
	KindNetwork          Kind = "network"
	KindInfo             Kind = "info"
)

// Default messages shown for the fixed notice kinds.
const (
	MsgSessionExpired   = "Session expired, please log in again"
	MsgPermissionDenied = "Insufficient permission"
	MsgRequestFailed    = "Request failed"
)

type Notice struct {
	Level   Level     `json:"level"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
	At      time.Time `json:"at"`
}

func (n Notice) String() string {
	return fmt.Sprintf("[%s] %s", n.Level, n.Message)
}

// Notifier receives notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Multi fans a notice out to every sink in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notice) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(ctx, n)
		}
	}
}

// LogNotifier writes notices to the structured log.
type LogNotifier struct {
	logger *applog.Logger
}

func NewLogNotifier(logger *applog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.WithComponent(applog.ComponentNotify)}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notice) {
	args := []any{applog.FieldNoticeKind, string(n.Kind), applog.FieldStatusCode, n.Status}
	switch n.Level {
	case LevelError:
		l.logger.ErrorContext(ctx, n.Message, args...)
	case LevelWarning:
		l.logger.WarnContext(ctx, n.Message, args...)
	default:
		l.logger.InfoContext(ctx, n.Message, args...)
	}
}

// WriterNotifier prints notices as single lines, typically to stderr.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (wn *WriterNotifier) Notify(_ context.Context, n Notice) {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	fmt.Fprintln(wn.w, n.String())
}

// Recorder keeps notices in memory. Used by tests and by callers that want to
// inspect what was shown.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}
