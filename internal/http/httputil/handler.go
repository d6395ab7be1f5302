package httputil

import "github.com/gin-gonic/gin"

// IHttpHandler is a handler group mounted under /api/v1/<Root()>.
type IHttpHandler interface {
	Root() string
	SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup)
}
