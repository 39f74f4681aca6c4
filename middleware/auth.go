package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harbor-im/harbor/service/chat"
	"github.com/harbor-im/harbor/tools/errs"
)

// CtxUserKey is where the resolved user id lands in the gin context.
const CtxUserKey = "authUserID"

// BearerAuth guards REST routes with the same credential verifier the
// gateway uses. Token comes from "Authorization: Bearer <token>".
func BearerAuth(verifier chat.CredentialVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrNoToken)
			return
		}

		user, cerr := verifier.Verify(c.Request.Context(), token)
		if cerr != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, cerr)
			return
		}
		c.Set(CtxUserKey, user.ID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by BearerAuth.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserKey)
}
