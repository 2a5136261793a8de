package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vidforge/vidforge/internal/httputil"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const userKey contextKey = "user"

type Handler struct {
	dir       Directory
	jwtSecret string
	tokenTTL  time.Duration
}

func NewHandler(dir Directory, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{dir: dir, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	account, err := h.dir.Lookup(r.Context(), req.Email)
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := GenerateAccessToken(h.jwtSecret, account.User, h.tokenTTL)
	if err != nil {
		slog.Error("auth: failed to sign access token", "user_id", account.ID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: token, User: account.User})
}

// Middleware rejects requests without a valid bearer token.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		user, msg := h.userFromHeader(authHeader)
		if msg != "" {
			httputil.WriteError(w, http.StatusUnauthorized, msg)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// OptionalMiddleware attaches the user when a valid token is present and lets
// anonymous requests through. A malformed or expired token is still rejected.
func (h *Handler) OptionalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, msg := h.userFromHeader(authHeader)
		if msg != "" {
			httputil.WriteError(w, http.StatusUnauthorized, msg)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (h *Handler) userFromHeader(authHeader string) (User, string) {
	tokenStr, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return User{}, "invalid authorization header format"
	}

	claims, err := ValidateToken(h.jwtSecret, tokenStr)
	if err != nil {
		return User{}, "invalid token"
	}

	if claims.TokenType != "access" {
		return User{}, "invalid token type"
	}
	return claims.User(), ""
}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

func UserIDFromContext(ctx context.Context) string {
	u, _ := UserFromContext(ctx)
	return u.ID
}

// SessionFromContext adapts the request identity to a Session.
func SessionFromContext(ctx context.Context) Session {
	if u, ok := UserFromContext(ctx); ok {
		return UserSession(u)
	}
	return Anonymous
}
