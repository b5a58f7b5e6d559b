package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"memosync/internal/auth"
	"memosync/internal/config"
	"memosync/internal/metrics"
	"memosync/internal/remote/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.JWT, *auth.MemoryUsers) {
	t.Helper()
	jwtSvc := auth.NewJWT("secret", time.Hour)
	users := auth.NewMemoryUsers()
	r := NewRouter(config.Config{CORSAllowedOrigins: []string{"http://app.local"}}, Deps{
		Store:   memstore.New(),
		Users:   users,
		JWT:     jwtSvc,
		OAuth:   auth.OAuth2Providers{},
		Metrics: metrics.NewCollector("test"),
	})
	return r, jwtSvc, users
}

func serve(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	r, _, _ := newTestRouter(t)
	rec := serve(r, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	r, _, _ := newTestRouter(t)
	serve(r, http.MethodGet, "/health", "", "")
	rec := serve(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRouter_Me(t *testing.T) {
	r, jwtSvc, users := newTestRouter(t)
	u := &auth.User{Email: "a@example.com", Name: "Ada"}
	require.NoError(t, users.Create(context.Background(), u))
	tok, err := jwtSvc.Sign(u.ID)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "", "").Code)

	rec := serve(r, http.MethodGet, "/me", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, u.ID, body["id"])
	assert.Equal(t, "Ada", body["name"])
}

func TestRouter_RegisterConflict(t *testing.T) {
	r, _, _ := newTestRouter(t)
	body := `{"email":"a@example.com","password":"password123"}`
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/api/collections/users/register", "", body).Code)

	rec := serve(r, http.MethodPost, "/api/collections/users/register", "", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"status":409,"message":"email already used"}`, rec.Body.String())
}

func TestRouter_RecordRoutes(t *testing.T) {
	r, jwtSvc, _ := newTestRouter(t)
	tok, err := jwtSvc.Sign("u1")
	require.NoError(t, err)

	rec := serve(r, http.MethodGet, "/api/collections/secrets/records", tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, http.MethodGet, `/api/collections/memos/records?filter=not-json`, tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, http.MethodPost, "/api/collections/memos/records", tok, `{"memo_id":"m1","created_at":5}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID   string         `json:"id"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "u1", created.Data["user"])

	rec = serve(r, http.MethodPatch, "/api/collections/memos/records/"+created.ID, tok, `{"content":"x"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodGet, "/api/collections/memos/records/first?filter="+url.QueryEscape(`{"memo_id":"m1"}`), tok, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"content":"x"`)

	rec = serve(r, http.MethodDelete, "/api/collections/memos/records/"+created.ID, tok, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(r, http.MethodGet, "/api/collections/memos/records/first?filter="+url.QueryEscape(`{"memo_id":"m1"}`), tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	r, _, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/collections/memos/records", nil)
	req.Header.Set("Origin", "http://app.local")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "http://app.local", rec.Header().Get("Access-Control-Allow-Origin"))
}
