package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"shop-ledger/internal/app"
	"shop-ledger/internal/core"
)

// jwtClaims is the JWT payload issued by the identity provider.
type jwtClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	ShopID *int64 `json:"shop_id,omitempty"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for actor. Used by the CLI token command and tests.
func SignToken(secret string, actor core.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &jwtClaims{
		UserID: actor.ID,
		Role:   string(actor.Role),
		ShopID: actor.ShopID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// tokenFromRequest reads a bearer token, falling back to the auth_token cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth is chi middleware that validates the JWT and stores the resulting
// core.Actor in the request context. Returns 401 if the token is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		role, err := core.ParseRole(claims.Role)
		if err != nil || claims.UserID <= 0 {
			writeError(w, r, "token carries no valid actor", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		ctx := app.WithActor(r.Context(), core.Actor{ID: claims.UserID, Role: role, ShopID: claims.ShopID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
