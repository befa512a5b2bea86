// Package api maps each backend endpoint to one method.
//
// Methods carry no business logic: they pick the HTTP method, path and
// payload, and return whatever the transport returns. Failed calls have
// already been reported to the user by the transport when they come back.
package api

import (
	"context"
	"net/url"

	applog "ledger/internal/log"
	"ledger/internal/transport"
)

// Doer is the part of transport.Client the resource methods use.
type Doer interface {
	Get(ctx context.Context, path string, out any, opts ...transport.RequestOption) (*transport.Response, error)
	Post(ctx context.Context, path string, body transport.Body, out any, opts ...transport.RequestOption) (*transport.Response, error)
	Put(ctx context.Context, path string, body transport.Body, out any, opts ...transport.RequestOption) (*transport.Response, error)
	Delete(ctx context.Context, path string, out any, opts ...transport.RequestOption) (*transport.Response, error)
	URL(path string, query url.Values) string
}

// Client groups the Auth, Income, Backup and Health endpoints.
type Client struct {
	Auth   *Auth
	Income *Income
	Backup *Backup
	System *System
}

func New(doer Doer, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentAPI)
	return &Client{
		Auth:   &Auth{doer: doer},
		Income: &Income{doer: doer, logger: logger},
		Backup: &Backup{doer: doer},
		System: &System{doer: doer},
	}
}
