package http

import (
	"github.com/gin-gonic/gin"

	"docmind/internal/bootstrap"
	"docmind/internal/model"
	"docmind/internal/transport/http/handler"
	"docmind/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	maxUploadMB := app.Config.App.MaxUploadMB
	router.MaxMultipartMemory = int64(maxUploadMB+1) << 20

	healthHandler := handler.NewHealthHandler(app)
	authHandler := handler.NewAuthHandler(app.Auth)
	documentHandler := handler.NewDocumentHandler(app.Ingest, app.Queue, app.Documents, maxUploadMB)
	chatHandler := handler.NewChatHandler(app.Chat, app.Answer)
	directHandler := handler.NewDirectHandler(app.Direct, maxUploadMB)

	router.GET("/healthz", healthHandler.Check)
	if app.Metrics != nil {
		router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))
	}

	secret := app.Config.Auth.JWTSecret
	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(secret), authHandler.Me)

	adminGroup := v1.Group("/admin")
	adminGroup.Use(middleware.AuthJWT(secret), middleware.RequireRole(model.RoleAdmin))
	adminGroup.POST("/documents", documentHandler.Upload)
	adminGroup.POST("/documents/async", documentHandler.UploadAsync)
	adminGroup.GET("/documents", documentHandler.List)
	adminGroup.GET("/documents/:id", documentHandler.Get)
	adminGroup.GET("/documents/:id/chunks", documentHandler.Chunks)
	adminGroup.GET("/documents/:id/progress", documentHandler.Progress)
	adminGroup.DELETE("/documents/:id", documentHandler.Delete)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(middleware.AuthJWT(secret))
	chatGroup.POST("/ask", chatHandler.Ask)
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.GET("/sessions/:id/messages", chatHandler.GetMessages)
	chatGroup.POST("/sessions/:id/messages", chatHandler.SendMessage)

	directGroup := v1.Group("/direct")
	directGroup.Use(middleware.AuthJWT(secret))
	directGroup.POST("/sessions", directHandler.Create)
	directGroup.GET("/sessions/:id/messages", directHandler.History)
	directGroup.POST("/sessions/:id/messages", directHandler.Send)
	directGroup.POST("/sessions/:id/messages/stream", directHandler.Stream)
	directGroup.DELETE("/sessions/:id", directHandler.Close)

	return router
}
