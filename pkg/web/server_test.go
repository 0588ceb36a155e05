package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/stretchr/testify/require"

	"github.com/vater-v/backgammon-server/pkg/server"
)

func testLogger() slog.Logger {
	backend := slog.NewBackend(os.Stderr)
	log := backend.Logger("test")
	log.SetLevel(slog.LevelError)
	return log
}

func newTestHandler(t *testing.T) (*Handler, *TokenManager) {
	t.Helper()

	database, err := server.NewDatabase(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	assets := NewAssetCache("", testLogger())
	profiles := server.NewProfileStore(database, assets)
	tokens := NewTokenManager("test-secret", time.Hour)

	ws := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	return NewHandler(database, profiles, tokens, assets, ws, testLogger()), tokens
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postJSON(t, h, "/api/register", authRequest{Username: "alice_1", Password: "passw0rd"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, h, "/api/login", authRequest{Username: "alice_1", Password: "passw0rd"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	require.Equal(t, "success", resp.Status)
	require.NotEmpty(t, resp.AccessToken)
	require.NotNil(t, resp.PlayerData)
	require.Equal(t, "alice_1", resp.PlayerData.Username)
	require.Equal(t, 500, resp.PlayerData.Money)
	require.Equal(t, 10, resp.PlayerData.Diamonds)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	h, _ := newTestHandler(t)

	postJSON(t, h, "/api/register", authRequest{Username: "alice", Password: "passw0rd"})
	rec := postJSON(t, h, "/api/register", authRequest{Username: "alice", Password: "passw0rd"})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Case-insensitive collision.
	rec = postJSON(t, h, "/api/register", authRequest{Username: "ALICE", Password: "passw0rd"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	cases := []struct {
		name string
		req  authRequest
		code string
	}{
		{"short username", authRequest{Username: "ab", Password: "passw0rd"}, codeInvalidUsername},
		{"long username", authRequest{Username: "abcdefghijklmnopqrstu", Password: "passw0rd"}, codeInvalidUsername},
		{"bad characters", authRequest{Username: "bad name!", Password: "passw0rd"}, codeInvalidUsername},
		{"short password", authRequest{Username: "alice", Password: "a1"}, codeWeakPassword},
		{"no digit", authRequest{Username: "alice", Password: "password"}, codeWeakPassword},
		{"no letter", authRequest{Username: "alice", Password: "12345678"}, codeWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/register", tc.req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, tc.code, decodeResponse(t, rec).Code)
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, _ := newTestHandler(t)

	postJSON(t, h, "/api/register", authRequest{Username: "alice", Password: "passw0rd"})
	rec := postJSON(t, h, "/api/login", authRequest{Username: "alice", Password: "wrong0pass"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeInvalidCredentials, decodeResponse(t, rec).Code)
}

func TestLoginUnknownUser(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := postJSON(t, h, "/api/login", authRequest{Username: "ghost", Password: "passw0rd"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileRequiresToken(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileWithToken(t *testing.T) {
	h, tokens := newTestHandler(t)

	postJSON(t, h, "/api/register", authRequest{Username: "alice", Password: "passw0rd"})
	token, err := tokens.Issue("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.Equal(t, "alice", resp.PlayerData.Username)
}

func TestPing(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pong", decodeResponse(t, rec).Message)
}

func TestAvatarListAndHashes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.png"), []byte("image-bytes"), 0600))

	assets := NewAssetCache(dir, testLogger())
	require.NotEqual(t, nullHash, assets.IconHash("default.png"))
	require.Equal(t, nullHash, assets.IconHash("missing.png"))

	list := assets.List()
	require.Len(t, list, 1)

	path, ok := assets.FilePath("default.png")
	require.True(t, ok)
	require.Equal(t, filepath.Join(dir, "default.png"), path)

	_, ok = assets.FilePath("../escape")
	require.False(t, ok)
}
