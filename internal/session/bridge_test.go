package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"memosync/internal/local"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	password func(email, password string) (Auth, error)
	oauth    func(provider string) (Auth, error)
	refresh  func(token string) (Auth, error)
}

func (f *fakeProvider) AuthWithPassword(_ context.Context, email, password string) (Auth, error) {
	return f.password(email, password)
}

func (f *fakeProvider) AuthWithOAuth2(_ context.Context, provider string) (Auth, error) {
	return f.oauth(provider)
}

func (f *fakeProvider) Refresh(_ context.Context, token string) (Auth, error) {
	return f.refresh(token)
}

var alice = Principal{ID: "u1", Email: "alice@example.com", Profile: Profile{Username: "alice"}}

func okProvider() *fakeProvider {
	return &fakeProvider{
		password: func(email, password string) (Auth, error) {
			if password != "secret" {
				return Auth{}, &AuthError{Op: "password", Status: 400, Message: "Failed to authenticate."}
			}
			return Auth{Token: "tok-1", Principal: alice}, nil
		},
		oauth: func(provider string) (Auth, error) {
			if provider != "github" {
				return Auth{}, errors.New("unknown provider")
			}
			return Auth{Token: "tok-gh", Principal: alice}, nil
		},
		refresh: func(token string) (Auth, error) {
			return Auth{Token: token + "-r", Principal: alice}, nil
		},
	}
}

func TestBridge_NotifiesOncePerTransition(t *testing.T) {
	ctx := context.Background()
	b := NewBridge(okProvider(), nil, zap.NewNop())

	var got []string
	unsubscribe := b.Subscribe(func(token string) { got = append(got, token) })
	defer unsubscribe()

	_, ok := b.Current()
	assert.False(t, ok)

	p, err := b.SignInWithPassword(ctx, "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, alice, p)

	_, err = b.Refresh(ctx)
	require.NoError(t, err)

	b.SignOut()

	assert.Equal(t, []string{"tok-1", "tok-1-r", ""}, got)
	_, ok = b.Current()
	assert.False(t, ok)
	assert.Empty(t, b.Token())
}

func TestBridge_UnsubscribeIsIdempotent(t *testing.T) {
	b := NewBridge(okProvider(), nil, nil)

	calls := 0
	other := 0
	unsubscribe := b.Subscribe(func(string) { calls++ })
	b.Subscribe(func(string) { other++ })

	unsubscribe()
	unsubscribe()

	_, err := b.SignInWithProvider(context.Background(), "github")
	require.NoError(t, err)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, other)
}

func TestBridge_SignInFailure(t *testing.T) {
	b := NewBridge(okProvider(), nil, nil)
	notified := false
	b.Subscribe(func(string) { notified = true })

	_, err := b.SignInWithPassword(context.Background(), "alice@example.com", "wrong")
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Failed to authenticate.", ae.Message)

	_, err = b.SignInWithProvider(context.Background(), "gitlab")
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "oauth2", ae.Op)

	assert.False(t, notified)
	_, ok := b.Current()
	assert.False(t, ok)
}

func TestBridge_RefreshWithoutSession(t *testing.T) {
	b := NewBridge(okProvider(), nil, nil)
	_, err := b.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestBridge_PersistAndRestore(t *testing.T) {
	ctx := context.Background()
	st := local.NewMemory()

	b := NewBridge(okProvider(), st, nil)
	_, err := b.SignInWithPassword(ctx, "alice@example.com", "secret")
	require.NoError(t, err)

	restored := NewBridge(okProvider(), st, nil)
	notified := false
	restored.Subscribe(func(string) { notified = true })
	ok, err := restored.Restore(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	p, ok := restored.Current()
	assert.True(t, ok)
	assert.Equal(t, alice, p)
	assert.Equal(t, "tok-1", restored.Token())
	assert.False(t, notified)

	restored.SignOut()
	_, ok, err = st.Get(ctx, local.KeyAuth)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBridge_Valid(t *testing.T) {
	sign := func(exp time.Time) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "u1",
			"exp": exp.Unix(),
		}).SignedString([]byte("k"))
		require.NoError(t, err)
		return tok
	}

	for name, tc := range map[string]struct {
		token string
		want  bool
	}{
		"fresh":   {token: sign(time.Now().Add(time.Hour)), want: true},
		"expired": {token: sign(time.Now().Add(-time.Hour)), want: false},
		"opaque":  {token: "not-a-jwt", want: true},
	} {
		t.Run(name, func(t *testing.T) {
			p := okProvider()
			p.password = func(string, string) (Auth, error) { return Auth{Token: tc.token, Principal: alice}, nil }
			b := NewBridge(p, nil, nil)
			assert.False(t, b.Valid())

			_, err := b.SignInWithPassword(context.Background(), "a", "b")
			require.NoError(t, err)
			assert.Equal(t, tc.want, b.Valid())
		})
	}
}

func TestPrincipal_Helpers(t *testing.T) {
	p := Principal{Email: "e@x.io"}
	assert.Equal(t, "e@x.io", p.DisplayName())
	assert.Equal(t, "", p.AvatarURL())

	p.Profile.Username = "octo"
	assert.Equal(t, "octo", p.DisplayName())
	assert.Equal(t, "https://github.com/octo.png", p.AvatarURL())

	p.Profile = Profile{Name: "Octo Cat", Username: "octo", Avatar: "https://cdn/a.png"}
	assert.Equal(t, "Octo Cat", p.DisplayName())
	assert.Equal(t, "https://cdn/a.png", p.AvatarURL())
}
