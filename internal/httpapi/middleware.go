package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/metrics"
)

// metricsMiddleware labels requests by route template so wallet addresses
// never become label values.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.InstrumentHandler(route, next).ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Fields("method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String()).
			Msg("request served")
	})
}
