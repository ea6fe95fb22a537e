package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chronoloom/internal/controller"
	"chronoloom/internal/middleware"
)

func Router(h *controller.Handler, jwtSecret string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Metrics())

	// Health for load balancers and K8s liveness and readiness checks
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public: no auth
	router.GET("/reminders", h.ListReminders)
	router.GET("/reminders/:id", h.GetReminder)

	// Protected: JWT required
	api := router.Group("")
	api.Use(middleware.Auth(jwtSecret))
	{
		api.POST("/reminders", h.CreateReminder)
		api.PUT("/reminders/:id", h.UpdateReminder)
		api.POST("/reminders/:id/complete", h.CompleteReminder)
		api.DELETE("/reminders/:id", h.DeleteReminder)
		api.POST("/reconcile", h.Reconcile)
		api.GET("/push-token", h.GetPushToken)
		api.PUT("/push-token", h.PutPushToken)
	}

	return router
}
