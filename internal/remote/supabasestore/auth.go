package supabasestore

import (
	"context"
	"errors"
	"fmt"

	"memosync/internal/session"

	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

// ErrOAuthUnsupported is returned for federated sign-in, which needs a
// browser redirect the GoTrue client does not drive.
var ErrOAuthUnsupported = errors.New("oauth sign-in is not supported by the supabase backend")

// Auth is a session.Provider backed by Supabase GoTrue.
type Auth struct {
	client *supabase.Client
}

func NewAuth(url, key string) (*Auth, error) {
	c, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &Auth{client: c}, nil
}

func (a *Auth) AuthWithPassword(ctx context.Context, email, password string) (session.Auth, error) {
	if err := ctx.Err(); err != nil {
		return session.Auth{}, session.NewAuthError("password", err)
	}
	s, err := a.client.SignInWithEmailPassword(email, password)
	if err != nil {
		return session.Auth{}, session.NewAuthError("password", err)
	}
	return fromSession(s), nil
}

func (a *Auth) AuthWithOAuth2(_ context.Context, provider string) (session.Auth, error) {
	return session.Auth{}, &session.AuthError{
		Op:      "oauth2",
		Message: fmt.Sprintf("%s: %v", provider, ErrOAuthUnsupported),
		Err:     ErrOAuthUnsupported,
	}
}

func (a *Auth) Refresh(ctx context.Context, refreshToken string) (session.Auth, error) {
	if err := ctx.Err(); err != nil {
		return session.Auth{}, session.NewAuthError("refresh", err)
	}
	s, err := a.client.RefreshToken(refreshToken)
	if err != nil {
		return session.Auth{}, session.NewAuthError("refresh", err)
	}
	return fromSession(s), nil
}

func fromSession(s types.Session) session.Auth {
	return session.Auth{
		Token:        s.AccessToken,
		RefreshToken: s.RefreshToken,
		Principal:    principal(s.User),
	}
}

func principal(u types.User) session.Principal {
	meta := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := u.UserMetadata[k].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}
	return session.Principal{
		ID:    u.ID.String(),
		Email: u.Email,
		Profile: session.Profile{
			Name:     meta("full_name", "name"),
			Username: meta("user_name", "preferred_username"),
			Avatar:   meta("avatar_url", "picture"),
		},
	}
}
