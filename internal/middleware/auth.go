package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/et1613/chitchatproject-sub001/internal/utils"
)

type ctxKey string

const (
	// ContextKeyUserID carries the authenticated subject id.
	ContextKeyUserID ctxKey = "current_user_id"
	// ContextKeyJTI carries the token id of the presented JWT.
	ContextKeyJTI ctxKey = "current_jti"
)

// RevocationChecker answers whether a jti has been revoked. The token
// service's blacklist backs this in production.
type RevocationChecker interface {
	IsTokenBlacklisted(ctx context.Context, tokenKey string) (bool, error)
}

// AuthMiddleware guards the management API with a bearer HS256 JWT signed
// by the shared service key. Expired, malformed and revoked tokens all get
// the same uniform "unauthorized" answer.
func AuthMiddleware(secret []byte, revoked RevocationChecker) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthorized", nil)
				return
			}
			parts := strings.Fields(auth)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthorized", nil)
				return
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
				// only accept HMAC signing
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenUnverifiable
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthorized", nil, err)
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthorized", nil)
				return
			}

			jti, _ := claims["jti"].(string)
			if jti != "" && revoked != nil {
				listed, err := revoked.IsTokenBlacklisted(r.Context(), utils.HashToken(jti))
				if err != nil {
					utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Authorization check failed", nil, err)
					return
				}
				if listed {
					utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthorized", nil)
					return
				}
			}

			sub, _ := claims["sub"].(string)
			if sub == "" {
				utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthorized", nil)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, sub)
			ctx = context.WithValue(ctx, ContextKeyJTI, jti)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
