package models

import (
	"time"
)

// Scan is one recorded visit to a tracking URL. Coordinate fields are
// pointers so an absent value stays NULL and is never confused with 0.
type Scan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LinkID    uint      `gorm:"not null;index" json:"link_id"`
	ScannedAt time.Time `json:"scanned_at"`

	// Server-side IP geolocation (automatic, ~city-level)
	IPAddress string   `gorm:"size:45" json:"ip_address,omitempty"`
	IPCity    string   `gorm:"size:255" json:"ip_city,omitempty"`
	IPRegion  string   `gorm:"size:255" json:"ip_region,omitempty"`
	IPCountry string   `gorm:"size:100" json:"ip_country,omitempty"`
	IPLat     *float64 `json:"ip_lat,omitempty"`
	IPLng     *float64 `json:"ip_lng,omitempty"`
	IPISP     string   `gorm:"size:255" json:"ip_isp,omitempty"`

	// Request metadata, stored verbatim
	UserAgent string `gorm:"type:text" json:"user_agent,omitempty"`
	Referer   string `gorm:"type:text" json:"referer,omitempty"`

	// Parsed from the User-Agent for the dashboard
	Browser    string `gorm:"size:100" json:"browser,omitempty"`
	OS         string `gorm:"size:100" json:"os,omitempty"`
	DeviceType string `gorm:"size:50" json:"device_type,omitempty"`

	// Client-side browser geolocation (precise, requires user permission),
	// filled in at most once by the landing page callback
	BrowserLat      *float64 `json:"browser_lat,omitempty"`
	BrowserLng      *float64 `json:"browser_lng,omitempty"`
	BrowserAccuracy *float64 `json:"browser_accuracy,omitempty"` // meters
}

func (Scan) TableName() string {
	return "scans"
}

// HasBrowserFix reports whether the scan carries a full browser-provided
// coordinate pair.
func (s Scan) HasBrowserFix() bool {
	return s.BrowserLat != nil && s.BrowserLng != nil
}

// HasIPFix reports whether the scan carries a full IP-derived coordinate pair.
func (s Scan) HasIPFix() bool {
	return s.IPLat != nil && s.IPLng != nil
}
