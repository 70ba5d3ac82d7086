package middleware

import (
	"exprview/domain/core"
	"exprview/internal/errors"

	"github.com/gin-gonic/gin"
)

const sessionKey = "exprview.session"

// RequireSession parses the session id path parameter and rejects malformed
// ids before the handler runs. Whether the session exists is left to the
// handler.
func RequireSession(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := core.ParseSessionID(c.Param(param))
		if err != nil {
			c.AbortWithStatusJSON(errors.HTTPStatus(err), gin.H{
				"error": err.Error(),
				"code":  errors.GetCode(errors.FromDomain(err)),
			})
			return
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

// SessionID returns the id stored by RequireSession
func SessionID(c *gin.Context) core.SessionID {
	if v, ok := c.Get(sessionKey); ok {
		if id, ok := v.(core.SessionID); ok {
			return id
		}
	}
	return ""
}
