package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/AaronBergman/flyer-tracker/internal/models"
	"github.com/AaronBergman/flyer-tracker/pkg/utils"

	"gorm.io/gorm"
)

var (
	ErrTargetURLRequired = errors.New("target_url is required")
	ErrSlugTaken         = errors.New("slug already exists")
	ErrLinkNotFound      = errors.New("link not found")
)

const generatedSlugLength = 8

// CreateLinkInput carries everything a caller may supply for a new link.
// Slug is optional; a random one is generated when it is empty.
type CreateLinkInput struct {
	Slug           string
	TargetURL      string
	Description    string
	PostedLocation string
}

type LinkService struct {
	db       *gorm.DB
	logger   *slog.Logger
	slugFunc func(int) string
}

func NewLinkService(db *gorm.DB, logger *slog.Logger) *LinkService {
	return &LinkService{
		db:       db,
		logger:   logger,
		slugFunc: utils.GenerateSlug,
	}
}

// Create normalizes and persists a new link. Supplied slugs are trimmed and
// lowercased; target URLs without a scheme get https. The unique index on
// slug has the final word under concurrent creates.
func (s *LinkService) Create(ctx context.Context, input CreateLinkInput) (*models.Link, error) {
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	targetURL := strings.TrimSpace(input.TargetURL)

	if targetURL == "" {
		return nil, ErrTargetURLRequired
	}
	if !strings.HasPrefix(targetURL, "http://") && !strings.HasPrefix(targetURL, "https://") {
		targetURL = "https://" + targetURL
	}

	db := s.db.WithContext(ctx)

	if slug == "" {
		for {
			candidate := s.slugFunc(generatedSlugLength)
			var existing models.Link
			err := db.Where("slug = ?", candidate).First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				slug = candidate
				break
			}
			if err != nil {
				return nil, err
			}
		}
	} else {
		var existing models.Link
		err := db.Where("slug = ?", slug).First(&existing).Error
		if err == nil {
			return nil, ErrSlugTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	link := models.Link{
		Slug:           slug,
		TargetURL:      targetURL,
		Description:    strings.TrimSpace(input.Description),
		PostedLocation: strings.TrimSpace(input.PostedLocation),
		CreatedAt:      time.Now().UTC(),
	}

	if err := db.Create(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}

	s.logger.Info("Link created", "slug", link.Slug, "target_url", link.TargetURL)
	return &link, nil
}

// BySlug returns the link for slug, or ErrLinkNotFound.
func (s *LinkService) BySlug(ctx context.Context, slug string) (*models.Link, error) {
	var link models.Link
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

// LinkWithCount pairs a link with its scan total for the dashboard.
type LinkWithCount struct {
	models.Link
	ScanCount int64
}

// List returns all links, newest first, each with its scan count. Links
// that have never been scanned report a count of zero.
func (s *LinkService) List(ctx context.Context) ([]LinkWithCount, error) {
	db := s.db.WithContext(ctx)

	var links []models.Link
	if err := db.Order("created_at desc").Find(&links).Error; err != nil {
		return nil, err
	}

	type linkCount struct {
		LinkID uint
		Count  int64
	}
	var counts []linkCount
	err := db.Model(&models.Scan{}).
		Select("link_id, count(*) as count").
		Group("link_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	byLink := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byLink[c.LinkID] = c.Count
	}

	out := make([]LinkWithCount, 0, len(links))
	for _, link := range links {
		out = append(out, LinkWithCount{Link: link, ScanCount: byLink[link.ID]})
	}
	return out, nil
}

// Delete removes a link and all of its scans in one transaction.
func (s *LinkService) Delete(ctx context.Context, slug string) error {
	link, err := s.BySlug(ctx, slug)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("link_id = ?", link.ID).Delete(&models.Scan{}).Error; err != nil {
			return err
		}
		return tx.Delete(link).Error
	})
	if err != nil {
		return err
	}

	s.logger.Info("Link deleted", "slug", slug)
	return nil
}
