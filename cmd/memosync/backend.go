package main

import (
	"context"
	"errors"
	"fmt"

	"memosync/internal/auth"
	"memosync/internal/client"
	"memosync/internal/config"
	"memosync/internal/db"
	"memosync/internal/local"
	"memosync/internal/remote"
	"memosync/internal/remote/gormstore"
	"memosync/internal/remote/supabasestore"
	"memosync/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// backend bundles the remote store with the identity provider that issues
// tokens for it.
type backend struct {
	store    remote.Store
	provider session.Provider
	// setToken, when set, receives every token change from the session.
	setToken func(string)
	// http is set for the record service backend only.
	http  *client.Client
	close func() error
}

func openBackend(ctx context.Context, cfg config.Client, state local.Store, logger *zap.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendHTTP:
		c, err := client.New(cfg.ServerURL, client.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return &backend{store: c, provider: c, setToken: c.SetToken, http: c, close: noClose}, nil

	case config.BackendSupabase:
		st, err := supabasestore.New(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, err
		}
		prov, err := supabasestore.NewAuth(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, err
		}
		return &backend{store: st, provider: prov, setToken: st.SetToken, close: noClose}, nil

	case config.BackendPostgres:
		gdb, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.AutoMigrateAndIndexes(gdb); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		key, err := deviceKey(ctx, state)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		return &backend{
			store:    gormstore.New(gdb),
			provider: &directAuth{users: &auth.GormUsers{DB: gdb}, jwt: auth.NewJWT(key, 0)},
			close:    sqlDB.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func noClose() error { return nil }

// keyDirectSessions holds the device-local secret that signs sessions of the
// postgres backend.
const keyDirectSessions = "directSessionKey"

func deviceKey(ctx context.Context, state local.Store) (string, error) {
	key, ok, err := state.Get(ctx, keyDirectSessions)
	if err != nil || ok {
		return key, err
	}
	key = uuid.NewString() + uuid.NewString()
	return key, state.Set(ctx, keyDirectSessions, key)
}

// directAuth signs in against the users table of a database the CLI reaches
// directly. Sessions are signed with a device-local key.
type directAuth struct {
	users auth.Users
	jwt   *auth.JWT
}

func (d *directAuth) AuthWithPassword(ctx context.Context, email, password string) (session.Auth, error) {
	u, err := d.users.ByEmail(ctx, email)
	if err != nil || !auth.ComparePassword(u.PasswordHash, password) {
		return session.Auth{}, &session.AuthError{Op: "password", Message: "failed to authenticate", Err: err}
	}
	return d.issue(u)
}

func (d *directAuth) AuthWithOAuth2(context.Context, string) (session.Auth, error) {
	err := errors.New("federated sign-in needs the http backend")
	return session.Auth{}, session.NewAuthError("oauth2", err)
}

func (d *directAuth) Refresh(ctx context.Context, token string) (session.Auth, error) {
	uid, err := d.jwt.Verify(token)
	if err != nil {
		return session.Auth{}, session.NewAuthError("refresh", err)
	}
	u, err := d.users.ByID(ctx, uid)
	if err != nil {
		return session.Auth{}, session.NewAuthError("refresh", err)
	}
	return d.issue(u)
}

func (d *directAuth) issue(u *auth.User) (session.Auth, error) {
	tok, err := d.jwt.Sign(u.ID)
	if err != nil {
		return session.Auth{}, session.NewAuthError("sign", err)
	}
	return session.Auth{
		Token: tok,
		Principal: session.Principal{
			ID:      u.ID,
			Email:   u.Email,
			Profile: session.Profile{Name: u.Name, Username: u.Username, Avatar: u.Avatar},
		},
	}, nil
}
