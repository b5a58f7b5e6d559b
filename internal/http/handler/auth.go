package handler

import (
	"errors"
	"net/http"
	"net/url"

	"memosync/internal/auth"
	"memosync/internal/metrics"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AuthHandler struct {
	Users   auth.Users
	JWT     *auth.JWT
	OAuth   auth.OAuth2Providers
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

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

func recordOf(u *auth.User) userRecord {
	return userRecord{ID: u.ID, Email: u.Email, Name: u.Name, Username: u.Username, Avatar: u.Avatar}
}

func (h *AuthHandler) issue(w http.ResponseWriter, status int, u *auth.User) {
	token, err := h.JWT.Sign(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, status, authResp{Token: token, Record: recordOf(u)})
}

func (h *AuthHandler) signIn(method string, err error) {
	if h.Metrics != nil {
		h.Metrics.RecordSignIn(method, err)
	}
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"max=100"`
	Username string `json:"username" validate:"max=64"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	u := auth.User{
		Email:        auth.NormalizeEmail(req.Email),
		PasswordHash: hash,
		Name:         req.Name,
		Username:     req.Username,
	}
	if err := h.Users.Create(r.Context(), &u); err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already used")
			return
		}
		h.Logger.Error("create user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.issue(w, http.StatusCreated, &u)
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.Users.ByEmail(r.Context(), req.Email)
	if err == nil && !auth.ComparePassword(u.PasswordHash, req.Password) {
		err = errors.New("password mismatch")
	}
	h.signIn("password", err)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to authenticate")
		return
	}
	h.issue(w, http.StatusOK, u)
}

// Refresh issues a new token for the bearer of a still-valid one.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	u, err := h.Users.ByID(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.issue(w, http.StatusOK, u)
}

type oauthURLResp struct {
	URL string `json:"url"`
}

func (h *AuthHandler) OAuthURL(w http.ResponseWriter, r *http.Request) {
	prov, err := h.OAuth.Get(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	q := r.URL.Query()
	redirect, state, challenge := q.Get("redirect_uri"), q.Get("state"), q.Get("code_challenge")
	if state == "" || challenge == "" || !loopback(redirect) {
		writeError(w, http.StatusBadRequest, "state, code_challenge and a loopback redirect_uri are required")
		return
	}
	writeJSON(w, http.StatusOK, oauthURLResp{URL: prov.AuthCodeURL(state, challenge, redirect)})
}

type oauthExchangeReq struct {
	Code         string `json:"code" validate:"required"`
	CodeVerifier string `json:"code_verifier" validate:"required,min=43,max=128"`
	RedirectURI  string `json:"redirect_uri" validate:"required,url"`
}

func (h *AuthHandler) OAuthExchange(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	prov, err := h.OAuth.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req oauthExchangeReq
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !loopback(req.RedirectURI) {
		writeError(w, http.StatusBadRequest, "redirect_uri must be a loopback address")
		return
	}

	id, err := prov.Exchange(r.Context(), req.Code, req.CodeVerifier, req.RedirectURI)
	h.signIn(name, err)
	if err != nil {
		h.Logger.Warn("oauth2 exchange failed", zap.String("provider", name), zap.Error(err))
		writeError(w, http.StatusBadRequest, "failed to authenticate")
		return
	}

	u, status, err := h.linkIdentity(r, id)
	if err != nil {
		h.Logger.Error("link oauth2 identity", zap.String("provider", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.issue(w, status, u)
}

// linkIdentity finds the account for a federated identity by email, creating
// it on first sign-in, and refreshes its profile fields.
func (h *AuthHandler) linkIdentity(r *http.Request, id auth.Identity) (*auth.User, int, error) {
	ctx := r.Context()
	u, err := h.Users.ByEmail(ctx, id.Email)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		u = &auth.User{
			Email:     id.Email,
			Name:      id.Name,
			Username:  id.Username,
			Avatar:    id.Avatar,
			Providers: []string{id.Provider},
		}
		if err := h.Users.Create(ctx, u); err != nil {
			return nil, 0, err
		}
		return u, http.StatusCreated, nil
	case err != nil:
		return nil, 0, err
	}

	if !u.HasProvider(id.Provider) {
		u.Providers = append(u.Providers, id.Provider)
	}
	if u.Name == "" {
		u.Name = id.Name
	}
	if u.Username == "" {
		u.Username = id.Username
	}
	if id.Avatar != "" {
		u.Avatar = id.Avatar
	}
	if err := h.Users.Save(ctx, u); err != nil {
		return nil, 0, err
	}
	return u, http.StatusOK, nil
}

func loopback(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	return host == "127.0.0.1" || host == "localhost" || host == "::1"
}
