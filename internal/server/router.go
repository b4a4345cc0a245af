package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/floatchat/floatchat-backend/internal/http/handlers"
)

type RouterConfig struct {
	AllowOrigins  []string
	HealthHandler *handlers.HealthHandler
	ChatHandler   *handlers.ChatHandler
	FloatsHandler *handlers.FloatsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/", cfg.HealthHandler.Liveness)
	router.POST("/", cfg.ChatHandler.Query)

	floats := router.Group("/floats")
	{
		floats.GET("/radius", cfg.FloatsHandler.Radius)
		floats.GET("/indian-ocean", cfg.FloatsHandler.IndianOcean)
		floats.GET("/all", cfg.FloatsHandler.All)
		floats.GET("/trajectories/radius", cfg.FloatsHandler.Trajectories)
		floats.GET("/:float_id", cfg.FloatsHandler.Detail)
	}

	return router
}
