package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "github.com/civicpulse/civicpulse/pkg/domain-errors"
	"github.com/civicpulse/civicpulse/pkg/platform/httputil"
)

const adminRole = "admin"

// AdminClaims is the token payload minted by the /admin/token exchange.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireAdmin guards the debug surface. Raw provider failure text is only
// visible to holders of a valid admin token.
func RequireAdmin(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims := &AdminClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(signingKey), nil
			})
			if err != nil || !parsed.Valid || claims.Role != adminRole {
				logger.WarnContext(r.Context(), "admin token rejected", "error", err)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid admin token"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
