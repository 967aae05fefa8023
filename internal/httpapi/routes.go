package httpapi

import "github.com/gin-gonic/gin"

// Register mounts the carousel API on g. adminOnly guards pool mutations;
// a nil guard leaves them open to whatever g already enforces.
func Register(g *gin.RouterGroup, h Handlers, adminOnly gin.HandlerFunc) {
	g.POST("/caller-id/choose", h.ChooseCallerID)

	pool := g.Group("/pool")
	pool.GET("", h.ListPool)
	{
		admin := pool.Group("")
		if adminOnly != nil {
			admin.Use(adminOnly)
		}
		admin.POST("", h.ProvisionNumber)
		admin.DELETE("/:id", h.DeactivateNumber)
	}

	g.POST("/collision-check", h.CheckCollision)

	g.POST("/quality", h.RecordQuality)
	g.GET("/quality", h.QueryQuality)

	g.POST("/coaching", h.Coaching)

	g.POST("/stream", h.StreamEvent)
	g.GET("/stream", h.ListTranscripts)

	g.GET("/phone/check", h.CheckPhone)
	g.POST("/voice/token", h.VoiceToken)
}
