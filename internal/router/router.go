package router

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	applog "ledger/internal/log"
)

var (
	ErrRedirectLoop  = errors.New("too many redirects")
	ErrInvalidTarget = errors.New("invalid navigation target")
)

// Location is a resolved navigation target.
type Location struct {
	Route Route
	Path  string
	Query url.Values
}

// FullPath is the path with its query string.
func (l Location) FullPath() string {
	if len(l.Query) == 0 {
		return l.Path
	}
	return l.Path + "?" + l.Query.Encode()
}

// RedirectTarget returns the ?redirect= value carried by a login location.
func (l Location) RedirectTarget() string {
	return l.Query.Get(RedirectQueryParam)
}

// SessionState is what guards need to know about the session.
type SessionState interface {
	IsLoggedIn() bool
}

// Guard inspects a target before navigation. It returns a non-empty path to
// send the navigation elsewhere, or "" to allow it.
type Guard func(to Location) string

// AuthGuard keeps logged out users on the login page and logged in users off it.
func AuthGuard(s SessionState) Guard {
	return func(to Location) string {
		loggedIn := s.IsLoggedIn()
		switch {
		case !to.Route.Public && !loggedIn:
			q := url.Values{}
			q.Set(RedirectQueryParam, to.FullPath())
			return PathLogin + "?" + q.Encode()
		case to.Route.Name == NameLogin && loggedIn:
			return PathRoot
		}
		return ""
	}
}

type Router struct {
	mu           sync.RWMutex
	table        *Table
	guards       []Guard
	current      Location
	maxRedirects int
	logger       *applog.Logger
}

type Option func(*Router)

func WithGuard(g Guard) Option {
	return func(r *Router) { r.guards = append(r.guards, g) }
}

func WithMaxRedirects(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxRedirects = n
		}
	}
}

func WithLogger(l *applog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l.WithComponent(applog.ComponentRouter)
		}
	}
}

// New creates a router over routes. Nothing is current until the first Push.
func New(routes []Route, opts ...Option) *Router {
	r := &Router{
		table:        NewTable(routes),
		maxRedirects: DefaultMaxRedirects,
		logger:       applog.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Current returns the last location navigation ended at.
func (r *Router) Current() Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Resolve computes where navigating to target ends without moving.
func (r *Router) Resolve(target string) (Location, error) {
	loc, err := parseTarget(target)
	if err != nil {
		return Location{}, err
	}

	for hop := 0; hop <= r.maxRedirects; hop++ {
		route, ok := r.table.Lookup(loc.Path)
		if !ok {
			loc = Location{Path: CatchAllRedirect}
			continue
		}
		if route.Redirect != "" {
			if loc, err = parseTarget(route.Redirect); err != nil {
				return Location{}, err
			}
			continue
		}
		loc.Route = route
		loc.Path = route.Path

		if next := r.runGuards(loc); next != "" {
			if loc, err = parseTarget(next); err != nil {
				return Location{}, err
			}
			continue
		}
		return loc, nil
	}
	return Location{}, fmt.Errorf("%w navigating to %q", ErrRedirectLoop, target)
}

// Push navigates to target, following redirects and guards, and records where
// it ended.
func (r *Router) Push(ctx context.Context, target string) (Location, error) {
	loc, err := r.Resolve(target)
	if err != nil {
		applog.LogError(ctx, r.logger, "Navigation failed", err, applog.OpNavigate,
			applog.NewFields().WithRoute(target, ""))
		return Location{}, err
	}

	r.mu.Lock()
	r.current = loc
	r.mu.Unlock()

	redirect := ""
	if loc.FullPath() != target {
		redirect = loc.FullPath()
	}
	r.logger.DebugContext(ctx, "Navigated",
		applog.NewFields().WithOperation(applog.OpNavigate).WithRoute(target, redirect).ToSlice()...)
	return loc, nil
}

func (r *Router) runGuards(to Location) string {
	for _, g := range r.guards {
		if next := g(to); next != "" {
			return next
		}
	}
	return ""
}

func parseTarget(target string) (Location, error) {
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	return Location{Path: cleanPath(u.Path), Query: u.Query()}, nil
}
