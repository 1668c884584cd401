package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cappuconnect/cappuconnect/internal/auth"
)

// authErrorBody mirrors the API error envelope. Defined here rather than
// importing the api package, which would create an import cycle.
type authErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeAuthError(w http.ResponseWriter, message string) {
	var body authErrorBody
	body.Error.Code = "auth_failed"
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(body)
}

// Auth is a middleware that validates a Bearer access token and stores the
// authenticated user ID in the request context. Refresh tokens are rejected;
// only access tokens grant API access.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, "Authorization header is required")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, "Authorization header must use the Bearer scheme")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				writeAuthError(w, "Invalid or expired token")
				return
			}
			if claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, "Access token required")
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
