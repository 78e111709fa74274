package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AaronBergman/flyer-tracker/internal/config"
	"github.com/AaronBergman/flyer-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Handler carries the shared dependencies for all HTTP handlers. db and rdb
// may be nil: a nil db puts every store-facing route into degraded mode, a
// nil rdb just disables the slug cache.
type Handler struct {
	cfg         config.Config
	logger      *slog.Logger
	db          *gorm.DB
	rdb         *redis.Client
	linkService *services.LinkService
	scanService *services.ScanService
	qrService   *services.QRService
}

func NewHandler(
	cfg config.Config,
	logger *slog.Logger,
	db *gorm.DB,
	rdb *redis.Client,
	linkService *services.LinkService,
	scanService *services.ScanService,
	qrService *services.QRService,
) *Handler {
	return &Handler{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		rdb:         rdb,
		linkService: linkService,
		scanService: scanService,
		qrService:   qrService,
	}
}

func (h *Handler) storeReady() bool {
	return h.db != nil
}

// renderStoreError serves the degraded-mode page for HTML routes. The
// message names what is wrong, /health carries the full diagnostics.
func (h *Handler) renderStoreError(c *gin.Context) {
	message := "The database is unreachable. See /health for diagnostics."
	if h.cfg.DatabaseURL == "" {
		message = "DATABASE_URL is not set. See /health for diagnostics."
	}
	c.HTML(http.StatusServiceUnavailable, "error.html", gin.H{"error": message})
}

// trackingURL builds the absolute short URL printed on flyers, using the
// host the request arrived on.
func (h *Handler) trackingURL(c *gin.Context, slug string) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/t/%s", scheme, c.Request.Host, slug)
}

func linkCacheKey(slug string) string {
	return "link:" + slug
}

func (h *Handler) invalidateLinkCache(ctx context.Context, slug string) {
	if h.rdb == nil {
		return
	}
	if err := h.rdb.Del(ctx, linkCacheKey(slug)).Err(); err != nil {
		h.logger.Warn("Failed to invalidate cached link", "slug", slug, "error", err)
	}
}
