package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// ActorAttributesMiddleware tags the current New Relic transaction with the
// acting user. It is a no-op when the request is not instrumented.
// It must run after AuthMiddleware.
func ActorAttributesMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if actor, ok := ActorFrom(c); ok {
			txn.AddAttribute("actor.id", actor.UserID)
			txn.AddAttribute("actor.role", string(actor.Role))
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
