package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Applicants *ApplicantHandler
	Emails     *EmailHandler
	Auth       *AuthHandler
	Metrics    *MetricsHandler
}

// Register mounts the API under prefix. protect guards staff routes; nil leaves them open.
func Register(r *gin.Engine, prefix string, h Handlers, protect gin.HandlerFunc) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.POST("/auth/login", h.Auth.Login)

	staff := api.Group("")
	if protect != nil {
		staff.Use(protect)
		staff.GET("/auth/me", h.Auth.Me)
	}

	applicants := staff.Group("/applicants")
	applicants.GET("", h.Applicants.List)
	applicants.GET("/export", h.Applicants.Export)
	applicants.POST("/status", h.Applicants.BulkSetStatus)
	applicants.POST("/promote-cleared", h.Applicants.PromoteCleared)
	applicants.POST("/refresh", h.Applicants.Refresh)
	applicants.GET("/:email", h.Applicants.Get)
	applicants.PUT("/:email/status", h.Applicants.SetStatus)

	staff.GET("/sync", h.Applicants.Sync)
	staff.POST("/sync/flush", h.Applicants.Flush)

	emails := staff.Group("/emails")
	emails.GET("/recipients", h.Emails.Recipients)
	emails.POST("/send", h.Emails.Send)
}
