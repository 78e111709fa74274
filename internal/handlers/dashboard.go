package handlers

import (
	"errors"
	"net/http"

	"github.com/AaronBergman/flyer-tracker/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// ShowDashboard handles GET / and GET /dashboard: every link with its scan
// count, newest first.
func (h *Handler) ShowDashboard(c *gin.Context) {
	if !h.storeReady() {
		h.renderStoreError(c)
		return
	}

	links, err := h.linkService.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list links", "error", err, "request_id", c.GetString("request_id"))
		h.renderStoreError(c)
		return
	}

	session := sessions.Default(c)
	flashes := session.Flashes()
	if len(flashes) > 0 {
		if err := session.Save(); err != nil {
			h.logger.Warn("Failed to clear flashes", "error", err)
		}
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Links":   links,
		"Flashes": flashes,
	})
}

// ShowLinkDetail handles GET /dashboard/:slug: the link's scans newest
// first, its map points, and the distinct-city count.
func (h *Handler) ShowLinkDetail(c *gin.Context) {
	if !h.storeReady() {
		h.renderStoreError(c)
		return
	}

	slug := c.Param("slug")

	link, err := h.linkService.BySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			c.HTML(http.StatusNotFound, "404.html", gin.H{"slug": slug})
			return
		}
		h.logger.Error("Failed to load link", "slug", slug, "error", err, "request_id", c.GetString("request_id"))
		h.renderStoreError(c)
		return
	}

	scans, err := h.scanService.ForLink(c.Request.Context(), link.ID)
	if err != nil {
		h.logger.Error("Failed to load scans", "slug", slug, "error", err, "request_id", c.GetString("request_id"))
		h.renderStoreError(c)
		return
	}

	c.HTML(http.StatusOK, "link_detail.html", gin.H{
		"Link":         link,
		"Scans":        scans,
		"MapPoints":    services.MapPoints(scans),
		"UniqueCities": services.UniqueCities(scans),
		"TrackingURL":  h.trackingURL(c, link.Slug),
	})
}

type createLinkForm struct {
	Slug           string `form:"slug"`
	TargetURL      string `form:"target_url"`
	Description    string `form:"description"`
	PostedLocation string `form:"posted_location"`
}

// HandleCreateLinkForm handles POST /dashboard/links, the HTML sibling of
// the JSON create API. Outcome lands in a flash and the browser goes back
// to the dashboard.
func (h *Handler) HandleCreateLinkForm(c *gin.Context) {
	if !h.storeReady() {
		h.renderStoreError(c)
		return
	}

	var form createLinkForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "error.html", gin.H{"error": "Invalid Input: " + err.Error()})
		return
	}

	session := sessions.Default(c)

	link, err := h.linkService.Create(c.Request.Context(), services.CreateLinkInput{
		Slug:           form.Slug,
		TargetURL:      form.TargetURL,
		Description:    form.Description,
		PostedLocation: form.PostedLocation,
	})
	switch {
	case errors.Is(err, services.ErrTargetURLRequired):
		session.AddFlash("Target URL is required.")
	case errors.Is(err, services.ErrSlugTaken):
		session.AddFlash("That slug is already taken.")
	case err != nil:
		h.logger.Error("Failed to create link from form", "error", err, "request_id", c.GetString("request_id"))
		session.AddFlash("Could not create the link. Check /health and try again.")
	default:
		session.AddFlash("Created /t/" + link.Slug)
	}

	if err := session.Save(); err != nil {
		h.logger.Warn("Failed to save session", "error", err)
	}

	c.Redirect(http.StatusSeeOther, "/dashboard")
}
