package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

// RequestLogger troca o logger de texto do chi por uma linha JSON por request.
// Depende de middleware.RequestID rodar antes.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		fields := logrus.Fields{
			"request_id":  middleware.GetReqID(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(started).Milliseconds(),
		}
		entry := logger.Get().WithFields(fields)
		switch {
		case ww.Status() >= http.StatusInternalServerError:
			entry.Error("request")
		case ww.Status() >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	})
}
