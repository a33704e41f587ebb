package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Freeeeeet/campus_lending/internal/auth"
	"go.uber.org/zap"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// requireAdmin lets the request through only with a valid admin token
func (s *Server) requireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.FromRequest(r)
		if err != nil {
			writeFail(w, http.StatusUnauthorized, "Admin token required")
			return
		}

		claims, err := s.tokens.ParseAdmin(raw)
		if err != nil {
			s.logger.Debug("Admin token rejected", zap.Error(err))
			status := http.StatusUnauthorized
			if errors.Is(err, auth.ErrNotAdmin) {
				status = http.StatusForbidden
			}
			writeFail(w, status, "Admin token required")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next(w, r.WithContext(ctx))
	})
}

// adminID returns the admin of an authenticated request
func adminID(r *http.Request) string {
	claims, ok := r.Context().Value(claimsKey).(*auth.Claims)
	if !ok {
		return ""
	}
	return claims.AdminID
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// logging writes one line per request. The websocket route is passed
// through untouched since the upgrade needs the raw ResponseWriter.
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
