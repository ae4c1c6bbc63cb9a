package middlewares

import (
	"context"
	"net/http"

	"github.com/paydeck/wallet/internal/authorization"
	"github.com/paydeck/wallet/internal/constants"
	"github.com/paydeck/wallet/internal/logger"
	"go.uber.org/zap"
)

type ctxKey string

const UID ctxKey = "uid"

func Authorize(a authorization.Authorizer, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// jwt header checking
		jwtHeader := r.Header.Get(constants.CookieToken)
		if jwtHeader == "" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Access denied"))
			return
		}
		userID, err := a.VerifyToken(jwtHeader)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Access denied"))
			return
		}
		ctx := context.WithValue(r.Context(), UID, userID)
		logger.Log.Debug("user authorized successfully", zap.String("user", userID), zap.String("path", r.URL.Path))
		next(w, r.WithContext(ctx))
	}
}
