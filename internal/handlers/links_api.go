package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/AaronBergman/flyer-tracker/internal/models"
	"github.com/AaronBergman/flyer-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

type createLinkRequest struct {
	Slug           string `json:"slug"`
	TargetURL      string `json:"target_url"`
	Description    string `json:"description"`
	PostedLocation string `json:"posted_location"`
}

// CreateLink handles POST /api/links.
func (h *Handler) CreateLink(c *gin.Context) {
	if !h.storeReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}

	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	link, err := h.linkService.Create(c.Request.Context(), services.CreateLinkInput{
		Slug:           req.Slug,
		TargetURL:      req.TargetURL,
		Description:    req.Description,
		PostedLocation: req.PostedLocation,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTargetURLRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "target_url is required"})
		case errors.Is(err, services.ErrSlugTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "slug already exists"})
		default:
			h.logger.Error("Failed to create link", "error", err, "request_id", c.GetString("request_id"))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create link"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":           link.ID,
		"slug":         link.Slug,
		"target_url":   link.TargetURL,
		"tracking_url": "/t/" + link.Slug,
	})
}

// DeleteLink handles DELETE /api/links/:slug. The link's scans go with it,
// and the cached copy is dropped so the slug 404s immediately.
func (h *Handler) DeleteLink(c *gin.Context) {
	if !h.storeReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}

	slug := c.Param("slug")

	if err := h.linkService.Delete(c.Request.Context(), slug); err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
			return
		}
		h.logger.Error("Failed to delete link", "slug", slug, "error", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete link"})
		return
	}

	h.invalidateLinkCache(c.Request.Context(), slug)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

var csvHeader = []string{
	"scanned_at", "ip_city", "ip_region", "ip_country", "ip_lat", "ip_lng",
	"browser_lat", "browser_lng", "browser_accuracy", "ip_address", "user_agent",
}

// ExportScans handles GET /api/links/:slug/export, serving the link's scans
// as a CSV attachment, most recent first.
func (h *Handler) ExportScans(c *gin.Context) {
	if !h.storeReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}

	slug := c.Param("slug")

	link, err := h.linkService.BySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
			return
		}
		h.logger.Error("Failed to load link", "slug", slug, "error", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export scans"})
		return
	}

	scans, err := h.scanService.ForLink(c.Request.Context(), link.ID)
	if err != nil {
		h.logger.Error("Failed to load scans", "slug", slug, "error", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export scans"})
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(csvHeader)
	for i := range scans {
		w.Write(scanCSVRow(&scans[i]))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.logger.Error("Failed to write CSV", "slug", slug, "error", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export scans"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_scans.csv", link.Slug))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func scanCSVRow(scan *models.Scan) []string {
	return []string{
		scan.ScannedAt.UTC().Format(time.RFC3339),
		scan.IPCity,
		scan.IPRegion,
		scan.IPCountry,
		csvFloat(scan.IPLat),
		csvFloat(scan.IPLng),
		csvFloat(scan.BrowserLat),
		csvFloat(scan.BrowserLng),
		csvFloat(scan.BrowserAccuracy),
		scan.IPAddress,
		scan.UserAgent,
	}
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// LinkQR handles GET /api/links/:slug/qr. The image encodes the absolute
// tracking URL; flyers are printed straight from this endpoint.
func (h *Handler) LinkQR(c *gin.Context) {
	if !h.storeReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}

	slug := c.Param("slug")

	link, err := h.linkService.BySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
			return
		}
		h.logger.Error("Failed to load link", "slug", slug, "error", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate QR code"})
		return
	}

	size, _ := strconv.Atoi(c.DefaultQuery("size", "0"))
	opts := services.QROptions{
		Content: h.trackingURL(c, link.Slug),
		Size:    size,
		FgColor: c.Query("fg"),
		BgColor: c.Query("bg"),
	}

	switch c.DefaultQuery("format", "png") {
	case "svg":
		data, err := h.qrService.GenerateSVG(opts)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "image/svg+xml", data)
	case "png":
		data, err := h.qrService.GeneratePNG(opts)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "image/png", data)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be png or svg"})
	}
}
