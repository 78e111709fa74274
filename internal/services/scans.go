package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/AaronBergman/flyer-tracker/internal/models"

	"github.com/mssola/user_agent"
	"gorm.io/gorm"
)

// ScanVisit carries the request-side facts about one tracking hit.
type ScanVisit struct {
	IP        string
	UserAgent string
	Referer   string
}

// BrowserGeo is the payload of the landing page callback. Nil fields clear
// the stored value.
type BrowserGeo struct {
	Lat      *float64
	Lng      *float64
	Accuracy *float64
}

type ScanService struct {
	db     *gorm.DB
	logger *slog.Logger
	geoIP  *GeoIPService
}

func NewScanService(db *gorm.DB, logger *slog.Logger, geoIP *GeoIPService) *ScanService {
	return &ScanService{
		db:     db,
		logger: logger,
		geoIP:  geoIP,
	}
}

// Record writes exactly one scan row for a hit on link. The IP lookup and
// user agent parse happen inline so the row is complete before the landing
// page renders; a failed lookup just leaves the location columns empty.
func (s *ScanService) Record(ctx context.Context, link *models.Link, visit ScanVisit) (*models.Scan, error) {
	scan := models.Scan{
		LinkID:    link.ID,
		ScannedAt: time.Now().UTC(),
		IPAddress: visit.IP,
		UserAgent: visit.UserAgent,
		Referer:   visit.Referer,
	}

	if loc, ok := s.geoIP.Locate(ctx, visit.IP); ok {
		scan.IPCity = loc.City
		scan.IPRegion = loc.Region
		scan.IPCountry = loc.Country
		scan.IPLat = loc.Lat
		scan.IPLng = loc.Lng
		scan.IPISP = loc.ISP
	}

	parseUserAgent(&scan)

	if err := s.db.WithContext(ctx).Create(&scan).Error; err != nil {
		return nil, err
	}

	s.logger.Info("Scan recorded", "slug", link.Slug, "scan_id", scan.ID, "ip", visit.IP)
	return &scan, nil
}

func parseUserAgent(scan *models.Scan) {
	if scan.UserAgent == "" {
		return
	}

	ua := user_agent.New(scan.UserAgent)
	name, version := ua.Browser()
	scan.Browser = strings.TrimSpace(name + " " + version)
	scan.OS = ua.OS()

	if ua.Mobile() {
		scan.DeviceType = "Mobile"
	} else if ua.Bot() {
		scan.DeviceType = "Bot"
	} else {
		scan.DeviceType = "Desktop"
	}
}

// UpdateBrowserGeo overwrites the browser-provided coordinates of a scan.
// Repeat calls replace the previous values, including back to NULL. An
// unknown scan id is a silent no-op: the beacon fires from an untrusted
// page and gets the same acknowledgment either way.
func (s *ScanService) UpdateBrowserGeo(ctx context.Context, scanID uint, geo BrowserGeo) error {
	var scan models.Scan
	if err := s.db.WithContext(ctx).First(&scan, scanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	updates := map[string]interface{}{
		"browser_lat":      geo.Lat,
		"browser_lng":      geo.Lng,
		"browser_accuracy": geo.Accuracy,
	}
	return s.db.WithContext(ctx).Model(&scan).Updates(updates).Error
}

// ForLink returns a link's scans, most recent first.
func (s *ScanService) ForLink(ctx context.Context, linkID uint) ([]models.Scan, error) {
	var scans []models.Scan
	err := s.db.WithContext(ctx).
		Where("link_id = ?", linkID).
		Order("scanned_at desc").
		Find(&scans).Error
	return scans, err
}

// MapPoint is one plotted scan on the detail map. Precise marks
// browser-provided coordinates.
type MapPoint struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	City    string  `json:"city"`
	Time    string  `json:"time"`
	Precise bool    `json:"precise"`
}

// MapPoints projects scans onto the map. Browser coordinates win over IP
// coordinates; scans without a complete pair of either are left off.
func MapPoints(scans []models.Scan) []MapPoint {
	points := make([]MapPoint, 0, len(scans))
	for i := range scans {
		scan := &scans[i]

		var point MapPoint
		switch {
		case scan.HasBrowserFix():
			point = MapPoint{Lat: *scan.BrowserLat, Lng: *scan.BrowserLng, Precise: true}
		case scan.HasIPFix():
			point = MapPoint{Lat: *scan.IPLat, Lng: *scan.IPLng}
		default:
			continue
		}

		point.City = scan.IPCity
		if point.City == "" {
			point.City = "Unknown"
		}
		point.Time = scan.ScannedAt.Format("Jan 02, 15:04")
		points = append(points, point)
	}
	return points
}

// UniqueCities counts the distinct non-empty IP-derived cities in scans.
func UniqueCities(scans []models.Scan) int {
	cities := make(map[string]struct{})
	for i := range scans {
		if city := scans[i].IPCity; city != "" {
			cities[city] = struct{}{}
		}
	}
	return len(cities)
}
