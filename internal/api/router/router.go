package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paleon-app/paleon-backend/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "paleon-api-service",
		})
	})

	authHandler := handler.NewAuthHandler(deps)
	classifyHandler := handler.NewClassifyHandler(deps)
	contentHandler := handler.NewContentHandler(deps)
	fossilHandler := handler.NewFossilHandler(deps)

	authed := AuthMiddleware(deps.Logger, deps.Tokens, deps.Storage)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/me", authed, authHandler.Me)
		authGroup.POST("/api-keys", authed, authHandler.CreateAPIKey)
		authGroup.GET("/api-keys", authed, authHandler.ListAPIKeys)
	}

	r.POST("/classify-async/", authed, classifyHandler.ClassifyAsync)
	r.GET("/result/:job_id", authed, classifyHandler.GetResult)
	r.GET("/jobs", authed, classifyHandler.ListJobs)

	content := r.Group("/content", authed)
	{
		content.POST("/create", contentHandler.Create)
		content.GET("/all", contentHandler.ListAll)
		content.GET("/guides", contentHandler.ListGuides)
		content.GET("/deep-dives", contentHandler.ListDeepDives)
		content.PUT("/:id", contentHandler.Update)
		content.DELETE("/:id", contentHandler.Delete)
		content.POST("/visit", contentHandler.RecordVisit)
		content.POST("/read", contentHandler.RecordRead)
	}

	fossils := r.Group("/fossils", authed)
	{
		fossils.POST("/create", fossilHandler.Create)
		fossils.GET("/all", fossilHandler.ListAll)
		fossils.POST("/found", fossilHandler.RecordFound)
		fossils.GET("/my-fossils", fossilHandler.MyFossils)
	}

	return r
}
