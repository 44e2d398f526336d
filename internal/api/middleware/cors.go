package middleware

import (
	"github.com/go-chi/cors"
)

// CORSHandler builds the cors options for the configured origins. An
// empty list means any origin; a wildcard origin disables credentialed
// requests.
func CORSHandler(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	allowCreds := true
	for _, o := range allowedOrigins {
		if o == "*" {
			allowCreds = false
			break
		}
	}

	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Range"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}
