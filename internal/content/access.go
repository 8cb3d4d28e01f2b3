// Package content guards digital-content downloads behind purchase checks.
package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("digital content not found")
	ErrNotPurchased = errors.New("variant has not been purchased")
	// ErrURLExpired covers both an elapsed validity window and an
	// exhausted download allowance.
	ErrURLExpired = errors.New("download link is no longer valid")
)

// PermissionManageProducts lets staff access any content without buying it.
const PermissionManageProducts = "product.manage_products"

// Viewer is the user on whose behalf content is requested. An empty
// UserID is an anonymous visitor.
type Viewer struct {
	UserID      string
	Permissions []string
}

func (v Viewer) HasPermission(perm string) bool {
	for _, p := range v.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Settings are the site-wide limits for content that uses default
// settings. Zero means unlimited.
type Settings struct {
	MaxDownloads int
	URLValidDays int
}

// Repository loads orders and digital content.
type Repository interface {
	OrdersForUser(ctx context.Context, userID string) ([]Order, error)
	ContentByVariant(ctx context.Context, variantID uint) (*DigitalContent, error)
	URLByToken(ctx context.Context, token string) (*DigitalContentURL, error)
	CreateURL(ctx context.Context, url *DigitalContentURL) error
	// IncrementDownloads counts one download of urlID unless the count
	// has already reached maxDownloads (nil means unlimited). It reports
	// whether the download was counted.
	IncrementDownloads(ctx context.Context, urlID uint, maxDownloads *int) (bool, error)
}

type AccessService struct {
	repo     Repository
	defaults Settings
	now      func() time.Time
	log      *zap.Logger
}

func NewAccessService(repo Repository, defaults Settings, log *zap.Logger) *AccessService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccessService{repo: repo, defaults: defaults, now: time.Now, log: log}
}

// HasPurchased reports whether viewer bought variantID in a confirmed,
// fully paid order. Product managers always have access.
func (s *AccessService) HasPurchased(ctx context.Context, viewer Viewer, variantID uint) (bool, error) {
	if viewer.HasPermission(PermissionManageProducts) {
		return true, nil
	}
	if viewer.UserID == "" {
		return false, nil
	}
	orders, err := s.repo.OrdersForUser(ctx, viewer.UserID)
	if err != nil {
		return false, fmt.Errorf("content: load orders: %w", err)
	}
	for _, o := range orders {
		if !o.IsConfirmed() || !o.IsFullyPaid() {
			continue
		}
		for _, line := range o.Lines {
			if line.VariantID == variantID {
				return true, nil
			}
		}
	}
	return false, nil
}

// ContentForVariant returns the variant's content if viewer may access it.
func (s *AccessService) ContentForVariant(ctx context.Context, viewer Viewer, variantID uint) (*DigitalContent, error) {
	ok, err := s.HasPurchased(ctx, viewer, variantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotPurchased
	}
	return s.repo.ContentByVariant(ctx, variantID)
}

// IssueURL creates a fresh download link for a purchased variant.
func (s *AccessService) IssueURL(ctx context.Context, viewer Viewer, variantID uint) (*DigitalContentURL, error) {
	dc, err := s.ContentForVariant(ctx, viewer, variantID)
	if err != nil {
		return nil, err
	}
	url := &DigitalContentURL{ContentID: dc.ID, Content: *dc}
	if err := s.repo.CreateURL(ctx, url); err != nil {
		return nil, fmt.Errorf("content: create url: %w", err)
	}
	return url, nil
}

// ResolveDownload returns the link behind token if it is still valid. The
// download is not counted; call CountDownload once the file is ready to
// be sent.
func (s *AccessService) ResolveDownload(ctx context.Context, token string) (*DigitalContentURL, error) {
	url, err := s.repo.URLByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !s.URLIsValid(url) {
		return nil, ErrURLExpired
	}
	return url, nil
}

// CountDownload uses one download of url's allowance. It fails with
// ErrURLExpired when a concurrent download took the last one.
func (s *AccessService) CountDownload(ctx context.Context, url *DigitalContentURL) error {
	maxDownloads, _ := s.limits(url.Content)
	counted, err := s.repo.IncrementDownloads(ctx, url.ID, maxDownloads)
	if err != nil {
		return fmt.Errorf("content: count download: %w", err)
	}
	if !counted {
		return ErrURLExpired
	}
	s.log.Info("digital content downloaded",
		zap.Uint("content_id", url.ContentID),
		zap.Int("download_num", url.DownloadNum+1),
	)
	return nil
}

// URLIsValid applies the content's (or the default) validity window and
// download allowance to url.
func (s *AccessService) URLIsValid(url *DigitalContentURL) bool {
	maxDownloads, validDays := s.limits(url.Content)
	if validDays != nil {
		validUntil := url.CreatedAt.AddDate(0, 0, *validDays)
		if validUntil.Before(s.now()) {
			return false
		}
	}
	if maxDownloads != nil && *maxDownloads <= url.DownloadNum {
		return false
	}
	return true
}

func (s *AccessService) limits(dc DigitalContent) (maxDownloads, validDays *int) {
	if !dc.UseDefaultSettings {
		return dc.MaxDownloads, dc.URLValidDays
	}
	if s.defaults.MaxDownloads > 0 {
		n := s.defaults.MaxDownloads
		maxDownloads = &n
	}
	if s.defaults.URLValidDays > 0 {
		n := s.defaults.URLValidDays
		validDays = &n
	}
	return maxDownloads, validDays
}
