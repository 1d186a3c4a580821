// Package gateway is the HTTP and websocket edge: REST endpoints for the
// request/response calls and one push socket per device.
package gateway

import (
	"chatwire/auth"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires every route. /api is bearer-gated except the auth
// endpoints; /healthz and /media stay public, media names are unguessable.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/healthz", h.Health)
	router.GET("/media/:name", h.ServeMedia)
	router.GET("/ws", h.ServeWS)

	api := router.Group("/api")
	api.POST("/auth/register", h.RegisterUser)
	api.POST("/auth/login", h.Login)

	protected := api.Group("")
	protected.Use(auth.Middleware(h.authenticator))
	protected.GET("/contacts", h.Contacts)
	// Sibling of /messages/:peer would conflict in the routing tree,
	// so search lives under its own segment.
	protected.GET("/search", h.SearchMessages)
	protected.GET("/messages/:peer", h.History)
	protected.POST("/messages/:peer", h.Send)
	protected.POST("/media", h.UploadMedia)
	protected.POST("/profile/avatar", h.UpdateAvatar)

	return router
}
