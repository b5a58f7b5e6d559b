package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"memosync/internal/auth"
	"memosync/internal/config"
	apihttp "memosync/internal/http"
	"memosync/internal/local"
	"memosync/internal/memo"
	"memosync/internal/metrics"
	"memosync/internal/remote"
	"memosync/internal/remote/memstore"
	"memosync/internal/repository"
	"memosync/internal/session"
	"memosync/internal/syncer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type fakeOAuth struct {
	mu        sync.Mutex
	challenge string
}

func (f *fakeOAuth) AuthCodeURL(state, challenge, redirectURI string) string {
	f.mu.Lock()
	f.challenge = challenge
	f.mu.Unlock()
	return redirectURI + "?code=abc&state=" + url.QueryEscape(state)
}

func (f *fakeOAuth) Exchange(_ context.Context, code, verifier, _ string) (auth.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code != "abc" || oauth2.S256ChallengeFromVerifier(verifier) != f.challenge {
		return auth.Identity{}, errors.New("bad code or verifier")
	}
	return auth.Identity{Provider: "github", ProviderID: "7", Email: "octo@example.com", Username: "octo"}, nil
}

type env struct {
	srv   *httptest.Server
	store *memstore.Store
	users *auth.MemoryUsers
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{store: memstore.New(), users: auth.NewMemoryUsers()}
	router := apihttp.NewRouter(config.Config{}, apihttp.Deps{
		Store:   e.store,
		Users:   e.users,
		JWT:     auth.NewJWT("test-secret", time.Hour),
		OAuth:   auth.OAuth2Providers{"github": &fakeOAuth{}},
		Metrics: metrics.NewCollector("test"),
		Logger:  zap.NewNop(),
	})
	e.srv = httptest.NewServer(router)
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) client(t *testing.T) *Client {
	t.Helper()
	c, err := New(e.srv.URL)
	require.NoError(t, err)
	return c
}

// signedIn registers an account and returns a client holding its token.
func (e *env) signedIn(t *testing.T, email string) (*Client, session.Principal) {
	t.Helper()
	c := e.client(t)
	a, err := c.Register(context.Background(), email, "password123", "")
	require.NoError(t, err)
	c.SetToken(a.Token)
	return c, a.Principal
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)
}

func TestClient_SignInThroughBridge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.client(t).Register(ctx, "a@example.com", "password123", "Ada")
	require.NoError(t, err)

	c := e.client(t)
	bridge := session.NewBridge(c, local.NewMemory(), zap.NewNop())
	defer bridge.Subscribe(c.SetToken)()

	p, err := bridge.SignInWithPassword(ctx, "a@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName())
	assert.Equal(t, bridge.Token(), c.Token())
	assert.True(t, bridge.Valid())

	_, err = bridge.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, bridge.Token(), c.Token())

	bridge.SignOut()
	assert.Empty(t, c.Token())
}

func TestClient_WrongPassword(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.client(t).Register(ctx, "a@example.com", "password123", "")
	require.NoError(t, err)

	_, err = e.client(t).AuthWithPassword(ctx, "a@example.com", "nope")
	var ae *session.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "failed to authenticate", ae.Message)
}

func TestClient_RegisterValidation(t *testing.T) {
	_, err := newEnv(t).client(t).Register(context.Background(), "not-an-email", "short", "")
	var ae *session.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
}

func TestClient_OAuth2Loopback(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	c.OpenURL = func(u string) error {
		go func() {
			res, err := http.Get(u)
			if err == nil {
				res.Body.Close()
			}
		}()
		return nil
	}

	a, err := c.AuthWithOAuth2(context.Background(), "github")
	require.NoError(t, err)
	assert.NotEmpty(t, a.Token)
	assert.Equal(t, "octo@example.com", a.Principal.Email)
	assert.Equal(t, "https://github.com/octo.png", a.Principal.AvatarURL())

	u, err := e.users.ByEmail(context.Background(), "octo@example.com")
	require.NoError(t, err)
	assert.True(t, u.HasProvider("github"))
}

func TestClient_OAuth2UnknownProvider(t *testing.T) {
	_, err := newEnv(t).client(t).AuthWithOAuth2(context.Background(), "gitlab")
	var ae *session.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusNotFound, ae.Status)
}

func TestClient_OAuth2CallbackTimeout(t *testing.T) {
	c := newEnv(t).client(t)
	c.OpenURL = func(string) error { return nil }
	c.CallbackTimeout = 50 * time.Millisecond

	_, err := c.AuthWithOAuth2(context.Background(), "github")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_StoreErrors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.client(t).ListAll(ctx, remote.CollectionMemos, nil, remote.Sort{})
	var re *remote.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnauthorized, re.Status)

	c, _ := e.signedIn(t, "a@example.com")
	_, err = c.LookupFirst(ctx, remote.CollectionMemos, remote.Eq("memo_id", "nope"))
	assert.True(t, remote.IsNotFound(err))

	_, err = c.Update(ctx, remote.CollectionMemos, "missing", remote.Data{"content": "x"})
	assert.True(t, remote.IsNotFound(err))
	assert.True(t, remote.IsNotFound(c.Delete(ctx, remote.CollectionMemos, "missing")))

	_, err = c.Create(ctx, remote.CollectionMemos, remote.Data{"user": "someone-else"})
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusForbidden, re.Status)

	_, err = c.Create(ctx, "users", remote.Data{})
	assert.Error(t, err)
}

func TestClient_RecordsAreScopedToCaller(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, ap := e.signedIn(t, "alice@example.com")
	bob, _ := e.signedIn(t, "bob@example.com")

	rec, err := alice.Create(ctx, remote.CollectionMemos, remote.Data{"memo_id": "m1", "content": "secret"})
	require.NoError(t, err)
	assert.Equal(t, ap.ID, rec.Data["user"])

	// bob cannot find, read, change or delete it, even by asking for alice's user
	_, err = bob.LookupFirst(ctx, remote.CollectionMemos, remote.Eq("memo_id", "m1").And("user", ap.ID))
	assert.True(t, remote.IsNotFound(err))
	_, err = bob.Get(ctx, remote.CollectionMemos, rec.ID)
	assert.True(t, remote.IsNotFound(err))
	_, err = bob.Update(ctx, remote.CollectionMemos, rec.ID, remote.Data{"content": "pwned"})
	assert.True(t, remote.IsNotFound(err))
	assert.True(t, remote.IsNotFound(bob.Delete(ctx, remote.CollectionMemos, rec.ID)))

	recs, err := bob.ListAll(ctx, remote.CollectionMemos, nil, remote.ByNewest)
	require.NoError(t, err)
	assert.Empty(t, recs)

	got, err := alice.Get(ctx, remote.CollectionMemos, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Data["content"])
}

func TestClient_PushPullEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c, p := e.signedIn(t, "a@example.com")

	laptop := local.NewMemory()
	memos := []memo.Memo{
		memo.New("first #idea", time.UnixMilli(1000)),
		memo.New("second", time.UnixMilli(2000)),
	}
	require.NoError(t, local.SaveMemos(ctx, laptop, memos))
	require.NoError(t, laptop.Set(ctx, "themeColor", "#000000"))

	push := syncer.New(repository.New(c, zap.NewNop()), laptop, zap.NewNop())
	res, err := push.SyncUserData(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Memos)

	// a second push updates in place
	_, err = push.SyncUserData(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, e.store.Len(remote.CollectionMemos))
	assert.Equal(t, 1, e.store.Len(remote.CollectionUserSettings))

	phone := local.NewMemory()
	pull := syncer.New(repository.New(c, zap.NewNop()), phone, zap.NewNop())
	_, err = pull.RestoreUserData(ctx, p.ID)
	require.NoError(t, err)

	got, err := local.LoadMemos(ctx, phone)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, memos[1].ID, got[0].ID)
	assert.Equal(t, []string{"idea"}, got[1].Tags)

	theme, _, err := phone.Get(ctx, "themeColor")
	require.NoError(t, err)
	assert.Equal(t, "#000000", theme)
}
