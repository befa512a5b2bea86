package transport

import (
	"context"

	"golang.org/x/oauth2"

	"ledger/internal/notify"
)

// TokenSource yields the token to attach to outgoing requests. A nil token
// means no Authorization header.
type TokenSource interface {
	Token() *oauth2.Token
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() *oauth2.Token

func (f TokenFunc) Token() *oauth2.Token { return f() }

// Events receives the side effects of failed responses. The transport calls
// OnAuthExpired before OnNotify on a 401 so a forced logout has happened by
// the time the notice is shown.
type Events interface {
	OnAuthExpired(ctx context.Context)
	OnNotify(ctx context.Context, n notify.Notice)
}

type nopEvents struct{}

func (nopEvents) OnAuthExpired(context.Context) {}
func (nopEvents) OnNotify(context.Context, notify.Notice) {}
