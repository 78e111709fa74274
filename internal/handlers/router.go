package handlers

import (
	"encoding/json"
	"html/template"

	"github.com/AaronBergman/flyer-tracker/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func (h *Handler) SetupRouter(rateLimiter *services.IPRateLimiter, templatePath string, staticPath string) *gin.Engine {
	r := gin.Default()

	r.SetFuncMap(template.FuncMap{
		"json": func(v interface{}) template.JS {
			a, _ := json.Marshal(v)
			return template.JS(a)
		},
	})

	if templatePath != "" {
		r.LoadHTMLGlob(templatePath)
	}
	if staticPath != "" {
		r.Static("/static", staticPath)
	}

	// Middleware
	r.Use(RequestIDMiddleware())
	if rateLimiter != nil {
		r.Use(h.RateLimitMiddleware(rateLimiter))
	}

	store := cookie.NewStore([]byte(h.cfg.SessionSecret))
	r.Use(sessions.Sessions("flyer_tracker_session", store))

	// Dashboard
	r.GET("/", h.ShowDashboard)
	r.GET("/dashboard", h.ShowDashboard)
	r.GET("/dashboard/:slug", h.ShowLinkDetail)
	r.POST("/dashboard/links", h.HandleCreateLinkForm)

	// Tracking
	r.GET("/t/:slug", h.TrackScan)
	r.POST("/t/:slug/geo", h.ReceiveBrowserGeo)

	// API
	api := r.Group("/api")
	{
		api.POST("/links", h.CreateLink)
		api.DELETE("/links/:slug", h.DeleteLink)
		api.GET("/links/:slug/export", h.ExportScans)
		api.GET("/links/:slug/qr", h.LinkQR)
	}

	r.GET("/health", h.Health)

	return r
}
