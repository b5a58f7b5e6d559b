// Package session bridges an identity provider's session into application
// state: the current principal, its token, and a change subscription that
// fires once per sign-in, sign-out or token refresh.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"memosync/internal/local"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrNoSession is returned by Refresh when nobody is signed in.
var ErrNoSession = errors.New("no active session")

// Bridge holds the provider-managed auth state.
type Bridge struct {
	provider Provider
	store    local.Store
	logger   *zap.Logger

	mu        sync.RWMutex
	token     string
	refresh   string
	principal *Principal

	lmu       sync.Mutex
	listeners map[uint64]func(token string)
	nextID    uint64
}

// NewBridge creates a bridge over provider. When store is non-nil the
// session is persisted under local.KeyAuth and can be restored with Restore.
func NewBridge(provider Provider, store local.Store, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		provider:  provider,
		store:     store,
		logger:    logger.Named("session"),
		listeners: map[uint64]func(string){},
	}
}

// Current returns a snapshot of the signed-in principal.
func (b *Bridge) Current() (Principal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.principal == nil {
		return Principal{}, false
	}
	return *b.principal, true
}

// Token returns the raw session token, empty when signed out.
func (b *Bridge) Token() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

// Valid reports whether a token is held and, if it carries an exp claim, has
// not expired. The signature is not checked; only the issuer can do that.
func (b *Bridge) Valid() bool {
	tok := b.Token()
	if tok == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		// opaque tokens carry no expiry we can read
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return time.Now().Before(exp.Time)
}

// Subscribe registers fn for every auth transition. The returned func stops
// delivery; calling it again is a no-op.
func (b *Bridge) Subscribe(fn func(token string)) func() {
	b.lmu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.lmu.Lock()
			delete(b.listeners, id)
			b.lmu.Unlock()
		})
	}
}

// SignInWithPassword authenticates with email and password.
func (b *Bridge) SignInWithPassword(ctx context.Context, email, password string) (Principal, error) {
	auth, err := b.provider.AuthWithPassword(ctx, email, password)
	if err != nil {
		return Principal{}, NewAuthError("password", err)
	}
	b.apply(ctx, auth)
	b.logger.Info("signed in", zap.String("user", auth.Principal.ID), zap.String("method", "password"))
	return auth.Principal, nil
}

// SignInWithProvider runs the federated sign-in of the named provider.
func (b *Bridge) SignInWithProvider(ctx context.Context, provider string) (Principal, error) {
	auth, err := b.provider.AuthWithOAuth2(ctx, provider)
	if err != nil {
		return Principal{}, NewAuthError("oauth2", err)
	}
	b.apply(ctx, auth)
	b.logger.Info("signed in", zap.String("user", auth.Principal.ID), zap.String("method", provider))
	return auth.Principal, nil
}

// Refresh exchanges the current token for a fresh one.
func (b *Bridge) Refresh(ctx context.Context) (Principal, error) {
	tok := b.Token()
	if tok == "" {
		return Principal{}, &AuthError{Op: "refresh", Message: ErrNoSession.Error(), Err: ErrNoSession}
	}
	b.mu.RLock()
	if b.refresh != "" {
		tok = b.refresh
	}
	b.mu.RUnlock()
	auth, err := b.provider.Refresh(ctx, tok)
	if err != nil {
		return Principal{}, NewAuthError("refresh", err)
	}
	b.apply(ctx, auth)
	return auth.Principal, nil
}

// SignOut drops the local session. Nothing is sent to the provider.
func (b *Bridge) SignOut() {
	b.mu.Lock()
	b.token = ""
	b.refresh = ""
	b.principal = nil
	b.mu.Unlock()

	if b.store != nil {
		if err := b.store.Delete(context.Background(), local.KeyAuth); err != nil {
			b.logger.Warn("failed to clear persisted session", zap.Error(err))
		}
	}
	b.notify("")
}

// Restore loads a persisted session without notifying subscribers. It
// reports whether a session was found.
func (b *Bridge) Restore(ctx context.Context) (bool, error) {
	if b.store == nil {
		return false, nil
	}
	raw, ok, err := b.store.Get(ctx, local.KeyAuth)
	if err != nil || !ok {
		return false, err
	}
	var auth Auth
	if err := json.Unmarshal([]byte(raw), &auth); err != nil {
		return false, err
	}
	if auth.Token == "" {
		return false, nil
	}

	b.mu.Lock()
	b.token = auth.Token
	b.refresh = auth.RefreshToken
	p := auth.Principal
	b.principal = &p
	b.mu.Unlock()
	return true, nil
}

func (b *Bridge) apply(ctx context.Context, auth Auth) {
	b.mu.Lock()
	b.token = auth.Token
	b.refresh = auth.RefreshToken
	p := auth.Principal
	b.principal = &p
	b.mu.Unlock()

	if b.store != nil {
		raw, err := json.Marshal(auth)
		if err == nil {
			err = b.store.Set(ctx, local.KeyAuth, string(raw))
		}
		if err != nil {
			b.logger.Warn("failed to persist session", zap.Error(err))
		}
	}
	b.notify(auth.Token)
}

func (b *Bridge) notify(token string) {
	b.lmu.Lock()
	fns := make([]func(string), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.lmu.Unlock()

	for _, fn := range fns {
		fn(token)
	}
}
