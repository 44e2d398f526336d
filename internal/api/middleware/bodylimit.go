package middleware

import "net/http"

// MaxBodySize caps request bodies at maxBytes. Applied to the JSON
// session routes; the upload endpoint sets its own, much larger,
// http.MaxBytesReader instead.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
