package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "larder/internal/core/context"
)

const (
	HeaderActor      = "X-Actor"
	HeaderActorEmail = "X-Actor-Email"
)

// Actor middleware propagates the pre-verified operator identity from the
// console gateway into the request context. Authentication itself happens
// upstream; this service only attributes moves and audit entries.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(HeaderActor)
		if actorID == "" {
			c.Next()
			return
		}

		actor := &appctx.Actor{
			ID:    actorID,
			Email: c.GetHeader(HeaderActorEmail),
		}

		ctx := appctx.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
