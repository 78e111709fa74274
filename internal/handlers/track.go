package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/AaronBergman/flyer-tracker/internal/models"
	"github.com/AaronBergman/flyer-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const linkCacheTTL = 10 * time.Minute

// TrackScan handles GET /t/:slug. It records one scan for the visit and
// renders the landing page, whose script forwards the browser's position
// to the geo callback before navigating to the target URL.
func (h *Handler) TrackScan(c *gin.Context) {
	if !h.storeReady() {
		h.renderStoreError(c)
		return
	}

	slug := c.Param("slug")

	link, err := h.resolveLink(c, slug)
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			c.HTML(http.StatusNotFound, "404.html", gin.H{"slug": slug})
			return
		}
		h.logger.Error("Failed to resolve link", "slug", slug, "error", err, "request_id", c.GetString("request_id"))
		h.renderStoreError(c)
		return
	}

	visit := services.ScanVisit{
		IP:        clientIP(c.Request),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	}

	scan, err := h.scanService.Record(c.Request.Context(), link, visit)
	if err != nil {
		h.logger.Error("Failed to record scan", "slug", slug, "error", err, "request_id", c.GetString("request_id"))
		h.renderStoreError(c)
		return
	}

	c.HTML(http.StatusOK, "landing.html", gin.H{
		"ScanID":      scan.ID,
		"TargetURL":   link.TargetURL,
		"GeoEndpoint": "/t/" + link.Slug + "/geo",
	})
}

// resolveLink finds the link for slug, cache first. Cache errors count as
// misses; the database stays authoritative.
func (h *Handler) resolveLink(c *gin.Context, slug string) (*models.Link, error) {
	ctx := c.Request.Context()

	// 1. Redis Cache Lookup (Full Object)
	if h.rdb != nil {
		val, err := h.rdb.Get(ctx, linkCacheKey(slug)).Result()
		if err == nil {
			var link models.Link
			if err := json.Unmarshal([]byte(val), &link); err == nil {
				return &link, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			h.logger.Warn("Redis lookup failed", "slug", slug, "error", err)
		}
	}

	// 2. DB Lookup (if Cache Miss)
	link, err := h.linkService.BySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	// 3. Write to Cache
	if h.rdb != nil {
		if data, err := json.Marshal(link); err == nil {
			h.rdb.Set(ctx, linkCacheKey(slug), data, linkCacheTTL)
		}
	}

	return link, nil
}

type browserGeoRequest struct {
	ScanID   *uint    `json:"scan_id"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy *float64 `json:"accuracy"`
}

// ReceiveBrowserGeo handles POST /t/:slug/geo. The page fires this once as
// a beacon, so the answer is an acknowledgment whether or not the scan id
// resolved; only an unparseable body is the caller's error.
func (h *Handler) ReceiveBrowserGeo(c *gin.Context) {
	if !h.storeReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
		return
	}

	var req browserGeoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	if req.ScanID == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	geo := services.BrowserGeo{
		Lat:      req.Lat,
		Lng:      req.Lng,
		Accuracy: req.Accuracy,
	}
	if err := h.scanService.UpdateBrowserGeo(c.Request.Context(), *req.ScanID, geo); err != nil {
		h.logger.Error("Failed to update browser geo", "scan_id", *req.ScanID, "error", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// clientIP trusts one upstream proxy hop: the first X-Forwarded-For entry
// wins, then the connection's remote host, then the "unknown" sentinel.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
