package middlewares

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/dmm-router/internal/common"
	"github.com/hxuan190/dmm-router/internal/http/httputil"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminAuth lets a request through only when it carries token, either as a
// bearer token or in the X-Admin-Token header. An empty token closes the
// group entirely.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			httputil.HttpError(c, common.HTTPErrorForbidden("admin api disabled"))
			return
		}
		got := c.GetHeader(AdminTokenHeader)
		if bearer, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); got == "" && ok {
			got = bearer
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			httputil.HttpError(c, common.HTTPErrorUnauthorized(""))
			return
		}
		c.Next()
	}
}
