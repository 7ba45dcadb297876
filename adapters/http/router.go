package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Imports  *ImportHandler
	Profiles *ProfileHandler
	Search   *SearchHandler
}

// RegisterRoutes mounts the API under /api. Everything except /api/health
// goes through authMiddleware.
func RegisterRoutes(router *gin.Engine, h Handlers, authMiddleware gin.HandlerFunc) {
	api := router.Group("/api")

	api.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })

	private := api.Group("/")
	private.Use(authMiddleware)
	{
		private.POST("/imports", h.Imports.Import)
		private.GET("/imports/:id", h.Imports.GetRun)
		private.POST("/uploads", h.Imports.Upload)

		private.GET("/profile", h.Profiles.GetProfile)
		private.PUT("/profile", h.Profiles.UpdateProfile)
		private.GET("/profile/connections", h.Profiles.ListConnections)
		private.GET("/profiles/:id", h.Profiles.GetProfileByID)

		private.GET("/search", h.Search.Search)
		private.GET("/search/semantic", h.Search.SemanticSearch)
	}
}
