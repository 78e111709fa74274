package models

import (
	"time"
)

// Link is a tracked destination. Each printed flyer carries a QR code
// pointing at /t/{slug}; the slug is the public identity of the link.
type Link struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Slug           string    `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	TargetURL      string    `gorm:"not null;type:text" json:"target_url"`
	Description    string    `gorm:"type:text" json:"description"`
	PostedLocation string    `gorm:"size:500" json:"posted_location"` // physical location of the flyer
	CreatedAt      time.Time `json:"created_at"`

	Scans []Scan `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"scans,omitempty"`
}

func (Link) TableName() string {
	return "links"
}
