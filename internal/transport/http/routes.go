package http

import "github.com/gin-gonic/gin"

// Routes collects the handlers and middleware mounted on the API router.
type Routes struct {
	Games      *GameHandler
	Messages   *MessageHandler
	Auth       gin.HandlerFunc
	GuessLimit gin.HandlerFunc
	WebSocket  gin.HandlerFunc
	Health     gin.HandlerFunc
}

func (rt Routes) Register(router *gin.Engine) {
	if rt.Health != nil {
		router.GET("/healthz", rt.Health)
	}

	// Public
	router.GET("/api/game", rt.Games.List)
	router.GET("/api/game/:code/qr", rt.Games.QR)

	protected := router.Group("/api")
	protected.Use(rt.Auth)
	{
		protected.POST("/game/create", rt.Games.Create)
		protected.POST("/game/join", rt.Games.Join)
		protected.POST("/game/start", rt.Games.Start)
		if rt.GuessLimit != nil {
			protected.POST("/game/guess", rt.GuessLimit, rt.Games.Guess)
		} else {
			protected.POST("/game/guess", rt.Games.Guess)
		}
		protected.POST("/game/leave", rt.Games.Leave)
		protected.GET("/game/:code", rt.Games.Get)

		protected.POST("/messages/send_message", rt.Messages.Send)
		protected.GET("/messages/:sessionId", rt.Messages.List)

		protected.GET("/dashboard", rt.Games.Dashboard)
		protected.GET("/dashboard/:userId", rt.Games.Dashboard)
	}

	// auth happens on the init frame
	if rt.WebSocket != nil {
		router.GET("/ws", rt.WebSocket)
	}
}
