package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AaronBergman/flyer-tracker/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestTrackScan(t *testing.T) {
	t.Run("Unknown Slug Creates Nothing", func(t *testing.T) {
		h, db := setupTestHandler()
		router := setupTestRouter(h)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/t/nothing-here", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "404")

		var count int64
		db.Model(&models.Scan{}).Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("Known Slug Records One Scan", func(t *testing.T) {
		h, db := setupTestHandler()
		router := setupTestRouter(h)

		link := models.Link{Slug: "flyer1", TargetURL: "https://site.org"}
		assert.NoError(t, db.Create(&link).Error)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/t/flyer1", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
		req.Header.Set("Referer", "https://board.example.com")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var scans []models.Scan
		assert.NoError(t, db.Find(&scans).Error)
		assert.Len(t, scans, 1)

		scan := scans[0]
		assert.Equal(t, link.ID, scan.LinkID)
		assert.Equal(t, "192.0.2.1", scan.IPAddress)
		assert.Equal(t, "https://board.example.com", scan.Referer)
		assert.Equal(t, "Mobile", scan.DeviceType)
		assert.Empty(t, scan.IPCity)

		body := w.Body.String()
		assert.Contains(t, body, `data-scan-id="1"`)
		assert.Contains(t, body, `data-target="https://site.org"`)
		assert.Contains(t, body, `data-geo-endpoint="/t/flyer1/geo"`)
	})

	t.Run("Forwarded For Recorded", func(t *testing.T) {
		h, db := setupTestHandler()
		router := setupTestRouter(h)

		link := models.Link{Slug: "fwd", TargetURL: "https://site.org"}
		assert.NoError(t, db.Create(&link).Error)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/t/fwd", nil)
		req.RemoteAddr = "10.0.0.5:4321"
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 70.41.3.18")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var scan models.Scan
		assert.NoError(t, db.First(&scan).Error)
		assert.Equal(t, "203.0.113.9", scan.IPAddress)
	})

	t.Run("Degraded Mode", func(t *testing.T) {
		router := setupTestRouter(setupDegradedHandler())

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/t/flyer1", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "DATABASE_URL")
	})
}

func TestReceiveBrowserGeo(t *testing.T) {
	h, db := setupTestHandler()
	router := setupTestRouter(h)

	link := models.Link{Slug: "flyer1", TargetURL: "https://site.org"}
	assert.NoError(t, db.Create(&link).Error)
	scan := models.Scan{LinkID: link.ID}
	assert.NoError(t, db.Create(&scan).Error)

	postGeo := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/t/flyer1/geo", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("Sets Browser Fields", func(t *testing.T) {
		w := postGeo(`{"scan_id": 1, "lat": 10, "lng": 20, "accuracy": 5}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]bool
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp["ok"])

		var stored models.Scan
		assert.NoError(t, db.First(&stored, scan.ID).Error)
		assert.Equal(t, 10.0, *stored.BrowserLat)
		assert.Equal(t, 20.0, *stored.BrowserLng)
		assert.Equal(t, 5.0, *stored.BrowserAccuracy)
	})

	t.Run("Second Call Overwrites", func(t *testing.T) {
		w := postGeo(`{"scan_id": 1, "lat": 11.5, "lng": 21.5, "accuracy": 8}`)
		assert.Equal(t, http.StatusOK, w.Code)

		var stored models.Scan
		assert.NoError(t, db.First(&stored, scan.ID).Error)
		assert.Equal(t, 11.5, *stored.BrowserLat)
		assert.Equal(t, 21.5, *stored.BrowserLng)
	})

	t.Run("Absent Fields Clear Values", func(t *testing.T) {
		w := postGeo(`{"scan_id": 1}`)
		assert.Equal(t, http.StatusOK, w.Code)

		var stored models.Scan
		assert.NoError(t, db.First(&stored, scan.ID).Error)
		assert.Nil(t, stored.BrowserLat)
		assert.Nil(t, stored.BrowserLng)
		assert.Nil(t, stored.BrowserAccuracy)
	})

	t.Run("Unknown Scan Still Acknowledged", func(t *testing.T) {
		w := postGeo(`{"scan_id": 424242, "lat": 1, "lng": 2}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]bool
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp["ok"])
	})

	t.Run("Missing Scan ID Acknowledged", func(t *testing.T) {
		w := postGeo(`{"lat": 1, "lng": 2}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Malformed Body Rejected", func(t *testing.T) {
		w := postGeo(`{not json`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp map[string]bool
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp["ok"])
	})

	t.Run("Wrong Field Type Rejected", func(t *testing.T) {
		w := postGeo(`{"scan_id": "first", "lat": 1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Empty Body Rejected", func(t *testing.T) {
		w := postGeo(``)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
