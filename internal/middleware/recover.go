package middleware

import (
	"fmt"
	"net/http"

	"baklava-be/internal/apperror"
	"baklava-be/internal/logger"
	"baklava-be/internal/utils"

	"go.uber.org/zap"
)

// Recover turns a handler panic into a logged 500.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.FromCtx(r.Context()).Error("handler panic",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("panic", fmt.Sprint(rec)),
					zap.Stack("stack"),
				)
				utils.WriteJSONError(w, apperror.GenericMessage, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
