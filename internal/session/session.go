// Package session holds who is logged in.
//
// A Store is hydrated once from durable Storage when it is created and from
// then on memory and storage are changed together by Login and Logout. The
// token is opaque to the store: IsLoggedIn only checks that one is present and
// never looks at expiry.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"ledger/internal/core"
	applog "ledger/internal/log"
)

var (
	ErrNoSession  = errors.New("not logged in")
	ErrEmptyToken = errors.New("login response carried no access token")
)

// Authenticator exchanges credentials for a token and profile.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*core.LoginResult, error)
}

type Store struct {
	mu      sync.RWMutex
	storage Storage
	logger  *applog.Logger
	token   string
	user    *core.Profile
}

type Option func(*Store)

func WithLogger(l *applog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(applog.ComponentSession)
		}
	}
}

// New creates a store and hydrates it from storage. Unreadable entries are
// logged and treated as absent.
func New(ctx context.Context, storage Storage, opts ...Option) *Store {
	s := &Store{storage: storage, logger: applog.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	s.hydrate(ctx)
	return s
}

func (s *Store) hydrate(ctx context.Context) {
	token, _, err := s.storage.Get(ctx, KeyToken)
	if err != nil {
		applog.LogError(ctx, s.logger, "Failed to read stored token", err, applog.OpHydrate, nil)
		token = ""
	}

	var user *core.Profile
	raw, ok, err := s.storage.Get(ctx, KeyUser)
	switch {
	case err != nil:
		applog.LogError(ctx, s.logger, "Failed to read stored user", err, applog.OpHydrate, nil)
	case ok && raw != "" && raw != "null":
		var p core.Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			s.logger.WarnContext(ctx, "Ignoring malformed stored user",
				applog.FieldOperation, applog.OpHydrate, applog.FieldError, err.Error())
		} else {
			user = &p
		}
	}

	// a profile without a token is not a session
	if token == "" {
		user = nil
	}
	s.token = token
	s.user = user
	s.logger.DebugContext(ctx, "Session hydrated", "logged_in", token != "")
}

// Login authenticates and stores the result. When authentication fails the
// store is left exactly as it was. When persisting fails, storage is rolled
// back to the previous session and memory is not changed.
func (s *Store) Login(ctx context.Context, auth Authenticator, username, password string) error {
	res, err := auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if res == nil || res.AccessToken == "" {
		return ErrEmptyToken
	}

	userJSON, err := json.Marshal(res.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prevToken, prevUser := s.token, s.user
	if err := s.storage.Set(ctx, KeyToken, res.AccessToken); err != nil {
		s.restore(ctx, prevToken, prevUser)
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.storage.Set(ctx, KeyUser, string(userJSON)); err != nil {
		s.restore(ctx, prevToken, prevUser)
		return fmt.Errorf("persist user: %w", err)
	}

	user := res.User
	s.token = res.AccessToken
	s.user = &user

	s.logger.InfoContext(ctx, "Logged in",
		applog.FieldOperation, applog.OpLogin, applog.FieldUsername, user.Username)
	return nil
}

// restore writes the previous session back to storage. Callers hold mu.
func (s *Store) restore(ctx context.Context, token string, user *core.Profile) {
	var errs []error
	if token == "" {
		errs = append(errs, s.storage.Delete(ctx, KeyToken))
	} else {
		errs = append(errs, s.storage.Set(ctx, KeyToken, token))
	}
	if user == nil {
		errs = append(errs, s.storage.Delete(ctx, KeyUser))
	} else if data, err := json.Marshal(user); err != nil {
		errs = append(errs, err)
	} else {
		errs = append(errs, s.storage.Set(ctx, KeyUser, string(data)))
	}
	if err := errors.Join(errs...); err != nil {
		applog.LogError(ctx, s.logger, "Failed to roll back session storage", err, applog.OpLogin, nil)
	}
}

// Logout clears the session. It is idempotent and never fails; storage errors
// are logged.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasLoggedIn := s.token != ""
	s.token = ""
	s.user = nil

	for _, key := range []string{KeyToken, KeyUser} {
		if err := s.storage.Delete(ctx, key); err != nil {
			applog.LogError(ctx, s.logger, "Failed to clear stored session", err, applog.OpLogout,
				applog.LogFields{"key": key})
		}
	}

	if wasLoggedIn {
		s.logger.InfoContext(ctx, "Logged out", applog.FieldOperation, applog.OpLogout)
	}
}

// IsLoggedIn reports whether a token is present.
func (s *Store) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the bearer token, or nil when logged out. It satisfies
// transport.TokenSource.
func (s *Store) Token() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return nil
	}
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}
}

// User returns a copy of the stored profile, or nil.
func (s *Store) User() *core.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Claims decodes the token payload without verifying the signature. The
// result is for display only.
func (s *Store) Claims() (*jwt.RegisteredClaims, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		return nil, ErrNoSession
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode token claims: %w", err)
	}
	return claims, nil
}
