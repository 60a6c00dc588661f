package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
)

const actorKey = "actor"

// ErrMissingToken is returned when a request carries no bearer token.
var ErrMissingToken = errors.New("missing bearer token")

// Authenticator resolves a bearer token into the actor of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Actor, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the resolved actor in the gin context.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortJSON(c, http.StatusUnauthorized, ErrMissingToken)
			return
		}

		actor, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, err)
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRole rejects actors whose role is not listed.
// It must run after AuthMiddleware.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, ErrMissingToken)
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abortJSON(c, http.StatusForbidden, errors.New("action not permitted for this role"))
	}
}

// ActorFrom returns the actor stored by AuthMiddleware.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortJSON(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
