package syncserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"friendsync/internal/auth"
	"friendsync/internal/config"
	"friendsync/internal/identity"
	"friendsync/internal/push"
)

// AuthHandler serves signup, login, and device-token registration.
type AuthHandler struct {
	provider  identity.Provider
	tokens    *push.TokenRegistry
	blacklist auth.TokenBlacklist
	cfg       config.Config
}

// NewAuthHandler creates an AuthHandler. blacklist may be nil when no
// revocation backend is configured.
func NewAuthHandler(provider identity.Provider, tokens *push.TokenRegistry, blacklist auth.TokenBlacklist, cfg config.Config) *AuthHandler {
	return &AuthHandler{provider: provider, tokens: tokens, blacklist: blacklist, cfg: cfg}
}

type signUpRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type registerTokenRequest struct {
	Token string `json:"token"`
}

// SignUp handles POST /auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	uid, err := h.provider.SignUp(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email is already registered")
		case errors.Is(err, identity.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "email, username, and password are required")
		default:
			log.Printf("signup failed: %v", err)
			writeError(w, http.StatusInternalServerError, "signup failed")
		}
		return
	}

	h.respondWithToken(w, uid, req.Username)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	uid, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		log.Printf("login failed: %v", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	h.respondWithToken(w, uid, "")
}

// Logout handles POST /auth/logout: the presented token's id is blacklisted
// until its natural expiry.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if h.blacklist == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	expiry := time.Now().Add(h.cfg.Auth.JWTExpiry)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	if err := h.blacklist.Add(r.Context(), claims.ID, expiry); err != nil {
		log.Printf("revoking token for %s failed: %v", claims.UserID, err)
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterDeviceToken handles POST /auth/device-token. The bearer token
// identifies the user; the body carries the platform push token.
func (h *AuthHandler) RegisterDeviceToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req registerTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.tokens.RegisterToken(r.Context(), claims.UserID, req.Token); err != nil {
		log.Printf("registering device token for %s failed: %v", claims.UserID, err)
		writeError(w, http.StatusInternalServerError, "could not register token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	header := r.Header.Get("Authorization")
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return nil, false
	}
	claims, err := auth.ValidateToken(r.Context(), tokenString, h.cfg.Auth.JWTSecretKey, h.blacklist)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return nil, false
	}
	return claims, true
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, uid, username string) {
	token, err := auth.GenerateToken(uid, username, h.cfg.Auth)
	if err != nil {
		log.Printf("issuing token for %s failed: %v", uid, err)
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{UserID: uid, Token: token})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("writing response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
