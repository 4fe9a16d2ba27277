package middleware

import (
	"context"
	"net/http"
	"strings"

	"stockledger/internal/apierror"
	"stockledger/internal/identity"

	"github.com/gin-gonic/gin"
)

const SessionKey = "session"

// Delegator is the slice of identity.Delegator the middleware needs.
type Delegator interface {
	Delegate(ctx context.Context, credential string) (*identity.Session, error)
}

// Delegate exchanges the bearer credential for a per-request session and
// closes it once the handler chain returns. Every failure is a bare 401.
func Delegate(d Delegator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(apierror.MsgUnauthorized))
			return
		}

		sess, err := d.Delegate(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(apierror.MsgUnauthorized))
			return
		}
		defer sess.Close()

		c.Set(SessionKey, sess)
		c.Next()
	}
}

// GetSession returns the session Delegate stored, or nil outside a
// delegated route.
func GetSession(c *gin.Context) *identity.Session {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*identity.Session)
	return sess
}
