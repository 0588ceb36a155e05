// Package web provides the HTTP surface of the backgammon service: account
// registration and login, profile fetch, avatar assets, and the websocket
// endpoint the game gateway upgrades.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/decred/slog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/vater-v/backgammon-server/pkg/server"
)

// Error codes surfaced to clients alongside HTTP statuses.
const (
	codeBadRequest         = "GENERIC_BAD_REQUEST"
	codeServerError        = "GENERIC_SERVER_ERROR"
	codeWeakPassword       = "AUTH_WEAK_PASSWORD"
	codeInvalidUsername    = "AUTH_INVALID_USERNAME"
	codeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	codeInvalidToken       = "AUTH_INVALID_TOKEN"
	codeUserNotFound       = "AUTH_USER_NOT_FOUND"
	codeUsernameTaken      = "AUTH_USERNAME_TAKEN"
)

var usernameRE = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// Handler is the chi router serving the HTTP API and the websocket
// endpoint.
type Handler struct {
	db       server.Database
	profiles server.ProfileStore
	tokens   *TokenManager
	assets   *AssetCache
	ws       http.HandlerFunc
	log      slog.Logger
	router   chi.Router
}

// NewHandler builds the router.
func NewHandler(database server.Database, profiles server.ProfileStore, tokens *TokenManager, assets *AssetCache, ws http.HandlerFunc, log slog.Logger) *Handler {
	h := &Handler{
		db:       database,
		profiles: profiles,
		tokens:   tokens,
		assets:   assets,
		ws:       ws,
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Get("/profile", h.handleProfile)
		r.Get("/ping", h.handlePing)
		r.Get("/assets/avatars", h.handleAvatarList)
		r.Get("/assets/avatars/{name}", h.handleAvatarDownload)
	})
	r.Get("/ws", h.ws)

	h.router = r
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type apiResponse struct {
	Status      string                `json:"status"`
	Message     string                `json:"message,omitempty"`
	Code        string                `json:"code,omitempty"`
	PlayerData  *server.PlayerProfile `json:"player_data,omitempty"`
	AccessToken string                `json:"access_token,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAuthRequest(w, r)
	if !ok {
		return
	}

	if !usernameRE.MatchString(req.Username) {
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Status:  "error",
			Message: "Username must be 3-20 characters: letters, digits and underscore.",
			Code:    codeInvalidUsername,
		})
		return
	}
	if !passwordAcceptable(req.Password) {
		writeJSON(w, http.StatusBadRequest, apiResponse{
			Status:  "error",
			Message: "Password must be at least 8 characters with at least one letter and one digit.",
			Code:    codeWeakPassword,
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.log.Errorf("failed to hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Status: "error", Message: "Internal server error.", Code: codeServerError})
		return
	}

	if err := h.db.RegisterUser(req.Username, string(hash)); err != nil {
		if errors.Is(err, server.ErrUsernameTaken) {
			writeJSON(w, http.StatusConflict, apiResponse{Status: "error", Message: "Username already taken.", Code: codeUsernameTaken})
			return
		}
		h.log.Errorf("failed to register user: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Status: "error", Message: "Internal server error.", Code: codeServerError})
		return
	}

	writeJSON(w, http.StatusCreated, apiResponse{Status: "success", Message: "Registration successful."})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAuthRequest(w, r)
	if !ok {
		return
	}

	storedHash, err := h.db.PasswordHash(req.Username)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(req.Password))
	}
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, apiResponse{Status: "error", Message: "Invalid username or password.", Code: codeInvalidCredentials})
		return
	}

	profile, err := h.profiles.Profile(req.Username)
	if err != nil {
		h.log.Errorf("failed to load profile after login: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Status: "error", Message: "Internal server error.", Code: codeServerError})
		return
	}

	token, err := h.tokens.Issue(profile.Username)
	if err != nil {
		h.log.Errorf("failed to issue token: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Status: "error", Message: "Internal server error.", Code: codeServerError})
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Status:      "success",
		Message:     "Welcome back, " + profile.Username + "!",
		PlayerData:  profile,
		AccessToken: token,
	})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	username, ok := h.authorize(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.Profile(username)
	if err != nil {
		writeJSON(w, http.StatusNotFound, apiResponse{Status: "error", Message: "User not found.", Code: codeUserNotFound})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Status: "success", PlayerData: profile})
}

func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiResponse{Status: "success", Message: "pong"})
}

func (h *Handler) handleAvatarList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.assets.List())
}

func (h *Handler) handleAvatarDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, ok := h.assets.FilePath(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

// authorize extracts and verifies the bearer token.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		writeJSON(w, http.StatusUnauthorized, apiResponse{Status: "error", Message: "Missing bearer token.", Code: codeInvalidToken})
		return "", false
	}
	username, err := h.tokens.Verify(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, apiResponse{Status: "error", Message: "Invalid or expired token.", Code: codeInvalidToken})
		return "", false
	}
	return username, true
}

func (h *Handler) decodeAuthRequest(w http.ResponseWriter, r *http.Request) (authRequest, bool) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Status: "error", Message: "No data.", Code: codeBadRequest})
		return req, false
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Password = strings.TrimSpace(req.Password)
	return req, true
}

// passwordAcceptable enforces length 8+ with at least one letter and one
// digit.
func passwordAcceptable(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter, hasDigit := false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
