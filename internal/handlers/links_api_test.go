package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AaronBergman/flyer-tracker/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCreateLinkAPI(t *testing.T) {
	postJSON := func(router http.Handler, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/links", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("Creates With Custom Slug", func(t *testing.T) {
		h, db := setupTestHandler()
		router := setupTestRouter(h)

		w := postJSON(router, `{"slug": "flyer1", "target_url": "site.org", "description": "park flyer"}`)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "flyer1", resp["slug"])
		assert.Equal(t, "https://site.org", resp["target_url"])
		assert.Equal(t, "/t/flyer1", resp["tracking_url"])
		assert.NotZero(t, resp["id"])

		var link models.Link
		assert.NoError(t, db.Where("slug = ?", "flyer1").First(&link).Error)
		assert.Equal(t, "park flyer", link.Description)
	})

	t.Run("Generates Slug When Absent", func(t *testing.T) {
		h, _ := setupTestHandler()
		router := setupTestRouter(h)

		w := postJSON(router, `{"target_url": "https://example.com"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp["slug"], 8)
	})

	t.Run("Missing Target URL", func(t *testing.T) {
		h, db := setupTestHandler()
		router := setupTestRouter(h)

		w := postJSON(router, `{"slug": "nope"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "target_url is required")

		var count int64
		db.Model(&models.Link{}).Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("Duplicate Slug", func(t *testing.T) {
		h, db := setupTestHandler()
		router := setupTestRouter(h)

		w := postJSON(router, `{"slug": "twice", "target_url": "https://a.example.com"}`)
		assert.Equal(t, http.StatusCreated, w.Code)

		w = postJSON(router, `{"slug": "twice", "target_url": "https://b.example.com"}`)
		assert.Equal(t, http.StatusConflict, w.Code)

		var count int64
		db.Model(&models.Link{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Invalid Body", func(t *testing.T) {
		h, _ := setupTestHandler()
		router := setupTestRouter(h)

		w := postJSON(router, `{broken`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Degraded Mode", func(t *testing.T) {
		router := setupTestRouter(setupDegradedHandler())

		w := postJSON(router, `{"target_url": "https://example.com"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestDeleteLinkAPI(t *testing.T) {
	t.Run("Deletes Link And Scans", func(t *testing.T) {
		h, db := setupTestHandler()
		router := setupTestRouter(h)

		link := models.Link{Slug: "doomed", TargetURL: "https://example.com"}
		assert.NoError(t, db.Create(&link).Error)
		assert.NoError(t, db.Create(&models.Scan{LinkID: link.ID}).Error)
		assert.NoError(t, db.Create(&models.Scan{LinkID: link.ID}).Error)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/links/doomed", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]bool
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp["ok"])

		var links, scans int64
		db.Model(&models.Link{}).Count(&links)
		db.Model(&models.Scan{}).Count(&scans)
		assert.Equal(t, int64(0), links)
		assert.Equal(t, int64(0), scans)
	})

	t.Run("Unknown Slug", func(t *testing.T) {
		h, _ := setupTestHandler()
		router := setupTestRouter(h)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/links/ghost", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestExportScansAPI(t *testing.T) {
	t.Run("Unknown Slug", func(t *testing.T) {
		h, _ := setupTestHandler()
		router := setupTestRouter(h)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/links/ghost/export", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("CSV Rows Newest First", func(t *testing.T) {
		h, db := setupTestHandler()
		router := setupTestRouter(h)

		link := models.Link{Slug: "park", TargetURL: "https://example.com"}
		assert.NoError(t, db.Create(&link).Error)

		older := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
		newer := time.Date(2025, time.March, 2, 10, 0, 0, 0, time.UTC)
		lat := 38.7
		assert.NoError(t, db.Create(&models.Scan{
			LinkID: link.ID, ScannedAt: older, IPCity: "Lisbon", IPAddress: "8.8.8.8", IPLat: &lat,
		}).Error)
		assert.NoError(t, db.Create(&models.Scan{
			LinkID: link.ID, ScannedAt: newer, IPCity: "Porto", IPAddress: "9.9.9.9",
		}).Error)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/links/park/export", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
		assert.Equal(t, "attachment; filename=park_scans.csv", w.Header().Get("Content-Disposition"))

		records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
		assert.NoError(t, err)
		assert.Len(t, records, 3)

		assert.Equal(t, csvHeader, records[0])
		assert.Equal(t, "Porto", records[1][1])
		assert.Equal(t, "Lisbon", records[2][1])
		assert.Equal(t, "2025-03-02T10:00:00Z", records[1][0])
		assert.Equal(t, "38.7", records[2][4])
		assert.Equal(t, "", records[1][4])
	})
}

func TestLinkQRAPI(t *testing.T) {
	h, db := setupTestHandler()
	router := setupTestRouter(h)

	link := models.Link{Slug: "park", TargetURL: "https://example.com"}
	assert.NoError(t, db.Create(&link).Error)

	t.Run("PNG By Default", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/links/park/qr", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))
	})

	t.Run("SVG Format", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/links/park/qr?format=svg", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "<svg")
	})

	t.Run("Unknown Slug", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/links/ghost/qr", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Bad Format", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/links/park/qr?format=gif", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Bad Color", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/links/park/qr?fg=red", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
