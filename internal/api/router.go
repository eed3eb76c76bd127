package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"parent-messenger/internal/app"
)

// NewRouter builds the operator HTTP API.
func NewRouter(a *app.App) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(a.Logger.Named("http")), gin.Recovery())

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	dispatchHandler := NewDispatchHandler(a)
	logHandler := NewLogHandler(a.Store)

	if a.Hub != nil {
		r.GET("/ws", gin.WrapF(a.Hub.ServeWs))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/ia-marks", dispatchHandler.SendIAMarks)
		apiGroup.POST("/circular", dispatchHandler.SendCircular)
		apiGroup.POST("/message", dispatchHandler.SendMessage)
		apiGroup.POST("/roster/preview", dispatchHandler.PreviewRoster)

		// Dispatch log
		apiGroup.GET("/dispatches", logHandler.GetDispatches)
		apiGroup.GET("/dispatches/export", logHandler.ExportDispatches)
		apiGroup.GET("/batches", logHandler.GetBatches)
	}
	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
