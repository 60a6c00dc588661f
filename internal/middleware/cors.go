package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
)

// CORSMiddleware answers preflight requests and sets CORS headers for the given origins.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	policy := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", idempotencyHeader},
		MaxAge:         300,
	})

	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})

		policy.Handler(next).ServeHTTP(c.Writer, c.Request)

		// Preflight requests are answered by the policy and stop here.
		if !passed {
			c.Abort()
		}
	}
}
