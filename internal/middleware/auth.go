package middleware

import (
	"context"
	"net/http"

	"baklava-be/internal/apperror"
	"baklava-be/internal/auth"
	"baklava-be/internal/logger"
	"baklava-be/internal/user"
	"baklava-be/internal/utils"

	"go.uber.org/zap"
)

// AuthLoader resolves the current role and approval status of a token's
// subject. Claims in the token are never trusted for either.
type AuthLoader interface {
	LoadAuthContext(ctx context.Context, userID uint) (auth.Context, error)
}

// AuthMiddleware is optional auth: requests without a token continue as
// anonymous, requests with a bad or stale token are rejected with 401.
func AuthMiddleware(loader AuthLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			log := logger.FromCtx(r.Context())

			claims, err := user.ParseJWT(tokenStr)
			if err != nil {
				log.Debug("rejected access token", zap.Error(err))
				utils.WriteJSONError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ac, err := loader.LoadAuthContext(r.Context(), claims.UserID)
			if err != nil {
				if apperror.Is(err, apperror.KindNotFound) {
					log.Warn("token for unknown user", zap.Uint("token_user_id", claims.UserID))
					utils.WriteJSONError(w, "invalid or expired token", http.StatusUnauthorized)
					return
				}
				log.Error("failed to load auth context", zap.Error(err))
				utils.WriteJSONError(w, apperror.PublicMessage(err), apperror.HTTPStatus(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), ac)))
		})
	}
}
