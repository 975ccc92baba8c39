package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/policy"
)

const (
	actorKey   = "actor"
	profileKey = "profile"
	tokenKey   = "token"
)

// bearerToken reads the session token from the Authorization header. The
// access_token query parameter is accepted for EventSource clients, which
// cannot set headers.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return c.Query("access_token")
}

// authMiddleware resolves the session token to an actor or aborts with 401
func (h *Handlers) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			h.respondError(c, "Authenticate", entity.ErrUnauthenticated)
			return
		}

		actor, profile, err := h.services.Auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.respondError(c, "Authenticate", err)
			return
		}

		c.Set(actorKey, actor)
		c.Set(profileKey, profile)
		c.Set(tokenKey, token)
		c.Next()
	}
}

func actorFrom(c *gin.Context) (policy.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return policy.Actor{}, false
	}
	actor, ok := v.(policy.Actor)
	return actor, ok
}

// mustActor returns the authenticated actor; routes using it sit behind authMiddleware
func mustActor(c *gin.Context) policy.Actor {
	actor, _ := actorFrom(c)
	return actor
}

func profileFrom(c *gin.Context) *entity.Profile {
	if v, ok := c.Get(profileKey); ok {
		p, _ := v.(*entity.Profile)
		return p
	}
	return nil
}
