package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"
)

type wrappedWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *wrappedWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// silentSuffixes mark high-frequency polling endpoints that are only
// logged on errors (status >= 400). The sync tick endpoint is hit every
// display frame.
var silentSuffixes = []string{
	"/active",
	"/api/health",
}

func isSilent(path string) bool {
	for _, s := range silentSuffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &wrappedWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if isSilent(r.URL.Path) && wrapped.statusCode < 400 {
			return
		}
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}
