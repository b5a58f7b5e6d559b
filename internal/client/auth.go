package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"memosync/internal/session"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"go.uber.org/zap"
)

type userRecord struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type authResp struct {
	Token  string     `json:"token"`
	Record userRecord `json:"record"`
}

func (r authResp) auth() session.Auth {
	return session.Auth{
		Token: r.Token,
		Principal: session.Principal{
			ID:    r.Record.ID,
			Email: r.Record.Email,
			Profile: session.Profile{
				Name:     r.Record.Name,
				Username: r.Record.Username,
				Avatar:   r.Record.Avatar,
			},
		},
	}
}

func authError(op string, err error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		return &session.AuthError{Op: op, Status: ae.Status, Message: ae.Message, Err: err}
	}
	return session.NewAuthError(op, err)
}

func (c *Client) AuthWithPassword(ctx context.Context, email, password string) (session.Auth, error) {
	var out authResp
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/collections/users/auth-with-password",
		body:   map[string]string{"email": email, "password": password},
	}, &out)
	if err != nil {
		return session.Auth{}, authError("password", err)
	}
	return out.auth(), nil
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, email, password, name string) (session.Auth, error) {
	var out authResp
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/collections/users/register",
		body:   map[string]string{"email": email, "password": password, "name": name},
	}, &out)
	if err != nil {
		return session.Auth{}, authError("register", err)
	}
	return out.auth(), nil
}

func (c *Client) Refresh(ctx context.Context, token string) (session.Auth, error) {
	var out authResp
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/collections/users/auth-refresh",
		bearer: token,
	}, &out)
	if err != nil {
		return session.Auth{}, authError("refresh", err)
	}
	return out.auth(), nil
}

type callback struct {
	code string
	err  error
}

// AuthWithOAuth2 runs the authorization-code flow with PKCE. The provider
// redirects to a one-shot listener on the loopback interface.
func (c *Client) AuthWithOAuth2(ctx context.Context, provider string) (session.Auth, error) {
	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return session.Auth{}, session.NewAuthError("oauth2", err)
	}
	redirect := fmt.Sprintf("http://%s/callback", ln.Addr().String())

	var start struct {
		URL string `json:"url"`
	}
	err = c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/oauth2/" + provider + "/url",
		query: url.Values{
			"redirect_uri":   {redirect},
			"state":          {state},
			"code_challenge": {oauth2.S256ChallengeFromVerifier(verifier)},
		},
	}, &start)
	if err != nil {
		_ = ln.Close()
		return session.Auth{}, authError("oauth2", err)
	}

	got := make(chan callback, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, got),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := c.OpenURL(start.URL); err != nil {
		return session.Auth{}, session.NewAuthError("oauth2", err)
	}
	c.logger.Debug("waiting for oauth2 callback", zap.String("provider", provider), zap.String("redirect", redirect))

	waitCtx, cancel := context.WithTimeout(ctx, c.CallbackTimeout)
	defer cancel()
	var cb callback
	select {
	case cb = <-got:
	case <-waitCtx.Done():
		return session.Auth{}, session.NewAuthError("oauth2", fmt.Errorf("waiting for sign-in: %w", waitCtx.Err()))
	}
	if cb.err != nil {
		return session.Auth{}, session.NewAuthError("oauth2", cb.err)
	}

	var out authResp
	err = c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/oauth2/" + provider + "/exchange",
		body: map[string]string{
			"code":          cb.code,
			"code_verifier": verifier,
			"redirect_uri":  redirect,
		},
	}, &out)
	if err != nil {
		return session.Auth{}, authError("oauth2", err)
	}
	return out.auth(), nil
}

func callbackHandler(state string, got chan<- callback) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var cb callback
		switch {
		case q.Get("state") != state:
			cb.err = errors.New("state mismatch in oauth2 callback")
		case q.Get("error") != "":
			cb.err = fmt.Errorf("provider refused sign-in: %s %s", q.Get("error"), q.Get("error_description"))
		case q.Get("code") == "":
			cb.err = errors.New("oauth2 callback without code")
		default:
			cb.code = q.Get("code")
		}

		if cb.err != nil {
			http.Error(w, cb.err.Error(), http.StatusBadRequest)
		} else {
			_, _ = w.Write([]byte("Signed in. You can close this window."))
		}
		select {
		case got <- cb:
		default:
		}
	})
	return mux
}
