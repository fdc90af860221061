package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/forum-web/internal/identity"
)

const claimsKey = "claims"

// BearerAuth verifies the Authorization bearer token and stores its claims
// on the context. With optional set, requests without a header pass through
// anonymously; a present but invalid token is still rejected.
func BearerAuth(secret []byte, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" && optional {
			c.Next()
			return
		}

		raw, err := identity.Bearer(header)
		if err != nil {
			Abort(c, err)
			return
		}
		claims, err := identity.Parse(raw, secret)
		if err != nil {
			Abort(c, err)
			return
		}

		c.Set(claimsKey, claims)
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

// Claims returns the verified identity of the request, if any.
func Claims(c *gin.Context) (identity.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return identity.Claims{}, false
	}
	claims, ok := v.(identity.Claims)
	return claims, ok
}
