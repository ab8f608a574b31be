package middleware

import (
	"net/http"

	"github.com/gorilla/handlers"
)

// CORS allows the listed frontend origins to call the API with cookies.
// Credentials rule out a "*" origin, so the list must be explicit.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Cookie"}),
		handlers.ExposedHeaders([]string{"Content-Length"}),
		handlers.AllowCredentials(),
	)
}
