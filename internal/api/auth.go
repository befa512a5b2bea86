package api

import (
	"context"
	"net/url"

	"ledger/internal/core"
	"ledger/internal/transport"
)

const (
	pathLogin          = "/auth/login"
	pathMe             = "/auth/me"
	pathChangePassword = "/auth/change-password"
)

type Auth struct {
	doer Doer
}

// Login posts the credentials as an OAuth2 password form. It satisfies
// session.Authenticator.
func (a *Auth) Login(ctx context.Context, username, password string) (*core.LoginResult, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var res core.LoginResult
	if _, err := a.doer.Post(ctx, pathLogin, transport.Form(form), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Me returns the profile of the token's owner.
func (a *Auth) Me(ctx context.Context) (*core.Profile, error) {
	var p core.Profile
	if _, err := a.doer.Get(ctx, pathMe, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ChangePassword sends both passwords as query parameters, which is what the
// backend contract expects from this client.
func (a *Auth) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	_, err := a.doer.Post(ctx, pathChangePassword, nil, nil,
		transport.WithParam("old_password", oldPassword),
		transport.WithParam("new_password", newPassword))
	return err
}
