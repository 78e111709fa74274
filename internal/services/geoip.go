package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/AaronBergman/flyer-tracker/internal/config"

	"golang.org/x/time/rate"
)

// Location is the city-level result of an IP lookup. Lat and Lng are
// pointers: nil means the provider gave no coordinate, which must stay
// distinguishable from an actual 0.
type Location struct {
	City    string
	Region  string
	Country string
	Lat     *float64
	Lng     *float64
	ISP     string
}

const geoLookupTimeout = 3 * time.Second

// net/httptest hands every request this RemoteAddr (TEST-NET-1).
const testClientIP = "192.0.2.1"

type GeoIPService struct {
	cfg     config.Config
	logger  *slog.Logger
	client  *http.Client
	limiter *rate.Limiter
}

func NewGeoIPService(cfg config.Config, logger *slog.Logger) *GeoIPService {
	return &GeoIPService{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: geoLookupTimeout},
		// ip-api.com's free tier allows 45 lookups per minute.
		limiter: rate.NewLimiter(rate.Limit(45.0/60.0), 45),
	}
}

// Locate asks the provider for city-level data about ip. It returns
// (zero, false) for local or unusable addresses, on any provider failure,
// and when the outbound budget is spent. One lookup per call, no retries,
// no caching; it never returns an error and never blocks past the client
// timeout.
func (s *GeoIPService) Locate(ctx context.Context, ip string) (Location, bool) {
	if skipLookup(ip) {
		return Location{}, false
	}

	if !s.limiter.Allow() {
		s.logger.Warn("GeoIP: lookup budget exhausted, skipping", "ip", ip)
		return Location{}, false
	}

	url := fmt.Sprintf("%s/%s?fields=status,city,regionName,country,lat,lon,isp",
		strings.TrimRight(s.cfg.GeoAPIURL, "/"), ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("GeoIP: lookup failed", "ip", ip, "error", err)
		return Location{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("GeoIP: provider returned unexpected status", "ip", ip, "status", resp.StatusCode)
		return Location{}, false
	}

	var payload struct {
		Status  string   `json:"status"`
		City    string   `json:"city"`
		Region  string   `json:"regionName"`
		Country string   `json:"country"`
		Lat     *float64 `json:"lat"`
		Lon     *float64 `json:"lon"`
		ISP     string   `json:"isp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		s.logger.Warn("GeoIP: malformed provider response", "ip", ip, "error", err)
		return Location{}, false
	}
	if payload.Status != "success" {
		return Location{}, false
	}

	return Location{
		City:    payload.City,
		Region:  payload.Region,
		Country: payload.Country,
		Lat:     payload.Lat,
		Lng:     payload.Lon,
		ISP:     payload.ISP,
	}, true
}

// skipLookup filters addresses the provider cannot resolve: the "unknown"
// sentinel, unparseable strings, loopback, and the httptest client address.
func skipLookup(ip string) bool {
	if ip == "" || ip == "unknown" || ip == testClientIP {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}
	return parsed.IsLoopback() || parsed.IsUnspecified()
}
