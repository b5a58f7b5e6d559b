package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

var ErrUnknownProvider = errors.New("unknown oauth2 provider")

// Identity is what a federated provider tells us about the signed-in user.
type Identity struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	Username   string
	Avatar     string
}

// OAuth2Provider runs the authorization-code flow with PKCE. The caller
// owns the verifier; only its S256 challenge reaches the provider in the
// authorize step.
type OAuth2Provider interface {
	AuthCodeURL(state, challenge, redirectURI string) string
	Exchange(ctx context.Context, code, verifier, redirectURI string) (Identity, error)
}

// OAuth2Providers is the configured provider set, keyed by name.
type OAuth2Providers map[string]OAuth2Provider

func (p OAuth2Providers) Get(name string) (OAuth2Provider, error) {
	if prov, ok := p[name]; ok {
		return prov, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
}

type GitHub struct {
	conf    *oauth2.Config
	apiBase string
}

func NewGitHub(clientID, clientSecret string) *GitHub {
	return &GitHub{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiBase: "https://api.github.com",
	}
}

func (g *GitHub) AuthCodeURL(state, challenge, redirectURI string) string {
	return g.conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("redirect_uri", redirectURI),
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (g *GitHub) Exchange(ctx context.Context, code, verifier, redirectURI string) (Identity, error) {
	tok, err := g.conf.Exchange(ctx, code,
		oauth2.VerifierOption(verifier),
		oauth2.SetAuthURLParam("redirect_uri", redirectURI),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("github exchange: %w", err)
	}
	client := g.conf.Client(ctx, tok)

	var profile struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, g.apiBase+"/user", &profile); err != nil {
		return Identity{}, fmt.Errorf("github profile: %w", err)
	}

	email := profile.Email
	if email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, g.apiBase+"/user/emails", &emails); err != nil {
			return Identity{}, fmt.Errorf("github emails: %w", err)
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return Identity{}, errors.New("github account has no verified primary email")
	}

	return Identity{
		Provider:   "github",
		ProviderID: strconv.FormatInt(profile.ID, 10),
		Email:      NormalizeEmail(email),
		Name:       profile.Name,
		Username:   profile.Login,
		Avatar:     profile.AvatarURL,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(v)
}
