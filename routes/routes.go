package routes

import (
	"net/http"

	"quizroom/handlers"
	"quizroom/middleware"
	"quizroom/services"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	roomHandler *handlers.RoomHandler,
	hub *services.Hub,
	verifier services.IdentityVerifier,
) {
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.Auth(verifier))
		{
			protected.GET("/auth/me", authHandler.Me)

			rooms := protected.Group("/rooms")
			{
				rooms.POST("", roomHandler.CreateRoom)
				rooms.GET("/:roomID", roomHandler.GetRoom)
				rooms.POST("/:roomID/join", roomHandler.JoinRoom)
				rooms.POST("/:roomID/start", roomHandler.StartGame)
			}
		}
	}

	// WebSocket endpoint for the persistent per-room connection. The token
	// travels as a query parameter because browser WebSocket clients cannot
	// set headers.
	router.GET("/ws/:roomID", func(c *gin.Context) {
		hub.Serve(c, c.Param("roomID"), c.Query("token"))
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
